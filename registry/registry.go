// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
)

// Service is a long-lived component managed by the registry.
type Service interface {
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// State is the lifecycle state of a registered service.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Error
	Destroying
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Error:
		return "error"
	case Destroying:
		return "destroying"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Registration is a snapshot of one registered service.
type Registration struct {
	ID           string
	Dependencies []string
	State        State
	LastError    error
}

type entry struct {
	id       string
	deps     []string
	service  Service
	state    State
	lastErr  error
	position int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.With("component", "registry")
		}
	}
}

// Registry owns a graph of services. It brings them up in dependency order
// and tears them down in reverse. Each Registry is independent; there is no
// package-level state.
type Registry struct {
	// lifecycle serializes InitializeAll and DestroyAll.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	initOrder []string
	sealed    bool
	ready     bool
	logger    *slog.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a service with the IDs it depends on. Dependencies need not
// be registered yet; they are checked by ValidateDependencies.
func (r *Registry) Register(id string, svc Service, deps ...string) error {
	if id == "" {
		return errors.New("registry: service id cannot be empty")
	}
	if svc == nil {
		return errors.Newf("registry: service %q is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return core.NewError(errorSource, ErrRegistrationClosed.Kind, id, nil)
	}
	if _, ok := r.entries[id]; ok {
		return alreadyRegistered(id)
	}
	r.entries[id] = &entry{
		id:       id,
		deps:     slices.Compact(slices.Sorted(slices.Values(deps))),
		service:  svc,
		position: len(r.order),
	}
	r.order = append(r.order, id)
	r.logger.Debug("service registered", "service", id, "dependencies", deps)
	return nil
}

// ValidateDependencies checks that every declared dependency is registered
// and that the graph has no cycles. It touches no service.
func (r *Registry) ValidateDependencies() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.plan()
	return err
}

// plan returns the initialization order. Among services whose dependencies
// are satisfied, the earliest registered goes first. Callers hold mu.
func (r *Registry) plan() ([]string, error) {
	missing := make(map[string][]string)
	for _, id := range r.order {
		for _, dep := range r.entries[id].deps {
			if _, ok := r.entries[dep]; !ok {
				missing[id] = append(missing[id], dep)
			}
		}
	}
	if len(missing) > 0 {
		return nil, missingDependency(missing, r.order)
	}

	pending := make(map[string]int, len(r.order))
	dependents := make(map[string][]string, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		pending[id] = len(e.deps)
		for _, dep := range e.deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var available []string
	for _, id := range r.order {
		if pending[id] == 0 {
			available = append(available, id)
		}
	}

	plan := make([]string, 0, len(r.order))
	for len(available) > 0 {
		slices.SortFunc(available, func(a, b string) int {
			return r.entries[a].position - r.entries[b].position
		})
		next := available[0]
		available = available[1:]
		plan = append(plan, next)
		for _, dependent := range dependents[next] {
			pending[dependent]--
			if pending[dependent] == 0 {
				available = append(available, dependent)
			}
		}
	}

	if len(plan) < len(r.order) {
		var stuck []string
		for _, id := range r.order {
			if pending[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, circularDependency(stuck)
	}
	return plan, nil
}

// InitializeAll validates the graph, then initializes every service after
// all of its dependencies are ready. If a service fails, it is marked Error,
// no further services are started, and every ready service is destroyed in
// reverse initialization order. A failed InitializeAll may be retried.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.ready {
		r.mu.Unlock()
		return nil
	}
	plan, err := r.plan()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.sealed = true
	r.initOrder = nil
	r.mu.Unlock()

	start := time.Now()
	for _, id := range plan {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("initialization cancelled", "before", id)
			r.rollback(ctx)
			return errors.Wrapf(err, "initialize %s", id)
		}

		e := r.entry(id)
		r.setState(e, Initializing, nil)
		began := time.Now()
		if err := e.service.Initialize(ctx); err != nil {
			r.setState(e, Error, err)
			r.logger.Error("service failed to initialize", "service", id, "err", err)
			r.rollback(ctx)
			return initializationFailed(id, err)
		}

		r.mu.Lock()
		e.state = Ready
		e.lastErr = nil
		r.initOrder = append(r.initOrder, id)
		r.mu.Unlock()
		r.logger.Debug("service ready", "service", id, "elapsed", time.Since(began))
	}

	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
	r.logger.Info("all services ready", "services", len(plan), "elapsed", time.Since(start))
	return nil
}

// rollback destroys every ready service after a failed initialization.
// Destroy errors are logged and do not stop the teardown.
func (r *Registry) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, err := range r.destroyReady(ctx) {
		r.logger.Warn("error during rollback", "err", err)
	}
	r.mu.Lock()
	r.initOrder = nil
	r.mu.Unlock()
}

// DestroyAll destroys every ready service in reverse initialization order.
// Every service is destroyed even when some fail; the failures are joined
// into the returned error. Calling DestroyAll again is a no-op.
func (r *Registry) DestroyAll(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	wasReady := r.ready
	r.ready = false
	r.mu.Unlock()
	if !wasReady {
		return nil
	}

	errs := r.destroyReady(ctx)
	r.mu.Lock()
	r.initOrder = nil
	r.mu.Unlock()
	r.logger.Info("all services destroyed", "failures", len(errs))
	return errors.Join(errs...)
}

func (r *Registry) destroyReady(ctx context.Context) []error {
	r.mu.RLock()
	order := slices.Clone(r.initOrder)
	r.mu.RUnlock()

	var errs []error
	for _, id := range slices.Backward(order) {
		e := r.entry(id)
		r.setState(e, Destroying, nil)
		if err := e.service.Destroy(ctx); err != nil {
			r.logger.Error("service failed to destroy", "service", id, "err", err)
			errs = append(errs, errors.Wrapf(err, "destroy %s", id))
			r.setState(e, Destroyed, err)
			continue
		}
		r.setState(e, Destroyed, nil)
		r.logger.Debug("service destroyed", "service", id)
	}
	return errs
}

func (r *Registry) entry(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

func (r *Registry) setState(e *entry, state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.state = state
	if err != nil {
		e.lastErr = err
	}
}

// Ready reports whether InitializeAll completed and DestroyAll has not run.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// State returns the lifecycle state of the service registered under id.
func (r *Registry) State(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Uninitialized, false
	}
	return e.state, true
}

// IDs returns the registered service IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// InitOrder returns the IDs of ready services in the order they were initialized.
func (r *Registry) InitOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.initOrder)
}

// Registrations returns a snapshot of every registration in registration order.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		out = append(out, Registration{
			ID:           id,
			Dependencies: slices.Clone(e.deps),
			State:        e.state,
			LastError:    e.lastErr,
		})
	}
	return out
}

// lookup returns the service registered under id once the registry is ready.
func (r *Registry) lookup(id string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, core.NewError(errorSource, ErrNotInitialized.Kind, "lookup of "+id, nil)
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, notFound(id, r.order)
	}
	return e.service, nil
}

// Get returns the service registered under id as a T. It fails with
// ErrNotInitialized before InitializeAll has completed, ErrNotFound (listing
// the known IDs) for an unknown id, and ErrTypeMismatch when the service is
// not a T.
func Get[T any](r *Registry, id string) (T, error) {
	var zero T
	svc, err := r.lookup(id)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, core.NewError(errorSource, ErrTypeMismatch.Kind,
			fmt.Sprintf("%s is %T, not %s", id, svc, reflect.TypeFor[T]()), nil)
	}
	return typed, nil
}
