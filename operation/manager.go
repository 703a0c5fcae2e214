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


package operation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/core"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single generator run.
	DefaultTimeout = 2 * time.Minute

	// DefaultHistorySize is how many statuses Status can look up.
	DefaultHistorySize = 256
)

// AdapterSource resolves a provider to its adapter. An empty provider
// selects the default. *ai.Registry satisfies it.
type AdapterSource interface {
	Adapter(p ai.Provider) (ai.Adapter, error)
}

// Result is the outcome of one Execute call. It is never nil, so callers can
// report the status of failed executions too.
type Result struct {
	Status   core.OperationStatus `json:"status"`
	Outputs  []*Output            `json:"outputs,omitempty"`
	Duration time.Duration        `json:"duration"`
}

// Output returns the output of type t, or nil.
func (r *Result) Output(t core.OperationType) *Output {
	for _, o := range r.Outputs {
		if o.Type == t {
			return o
		}
	}
	return nil
}

// Kinds lists the operation types that produced output.
func (r *Result) Kinds() []core.OperationType {
	kinds := make([]core.OperationType, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		kinds = append(kinds, o.Type)
	}
	return kinds
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With("component", "operations")
		}
	}
}

// WithTimeout bounds each generator run. Zero disables the bound.
// Default: 2m
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithGenerators registers generators, replacing defaults of the same type.
func WithGenerators(gens ...Generator) Option {
	return func(m *Manager) {
		for _, g := range gens {
			m.generators[g.Type()] = g
		}
	}
}

// WithRateLimit limits adapter calls per provider to rps with the given burst.
// Default: unlimited
func WithRateLimit(rps float64, burst int) Option {
	return func(m *Manager) {
		m.limit = rate.Limit(rps)
		m.burst = max(burst, 1)
	}
}

// WithRegistry sets the prometheus registry the manager's collectors are
// registered with. Default: a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithTracer sets the tracer used for execution spans.
// Default: otel.Tracer for this package.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithHistorySize sets how many statuses are retained.
func WithHistorySize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historySize = n
		}
	}
}

// ExecuteOption configures one Execute call.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	retryOf string
}

// RetryOf links the new status to the status of a previous attempt.
func RetryOf(statusID string) ExecuteOption {
	return func(o *executeOptions) { o.retryOf = statusID }
}

// Manager turns OperationRequests into adapter calls through the generator
// registered for the request type. It never retries; retry policy belongs to
// the caller.
type Manager struct {
	adapters    AdapterSource
	generators  map[core.OperationType]Generator
	timeout     time.Duration
	limit       rate.Limit
	burst       int
	registry    *prometheus.Registry
	tracer      trace.Tracer
	historySize int
	logger      *slog.Logger

	metrics *metricsTable
	history *history

	limitersMu sync.Mutex
	limiters   map[ai.Provider]*rate.Limiter
}

// NewManager creates a manager with the default generators.
func NewManager(adapters AdapterSource, opts ...Option) (*Manager, error) {
	if adapters == nil {
		return nil, errors.New("operation manager: adapter source is required")
	}
	m := &Manager{
		adapters:    adapters,
		generators:  make(map[core.OperationType]Generator),
		timeout:     DefaultTimeout,
		limit:       rate.Inf,
		burst:       1,
		tracer:      otel.Tracer("github.com/poiesic/notegen/operation"),
		historySize: DefaultHistorySize,
		logger:      slog.Default().With("component", "operations"),
		limiters:    make(map[ai.Provider]*rate.Limiter),
	}
	for _, g := range DefaultGenerators() {
		m.generators[g.Type()] = g
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.metrics = newMetricsTable(m.registry)
	m.history = newHistory(m.historySize)
	return m, nil
}

// Initialize checks that every generator type has a generator.
func (m *Manager) Initialize(ctx context.Context) error {
	for _, t := range core.GeneratorTypes {
		if _, ok := m.generators[t]; !ok {
			return errors.Wrapf(ErrNoGenerator, "%s", t)
		}
	}
	return nil
}

// Destroy is a no-op; in-flight executions finish on their own contexts.
func (m *Manager) Destroy(ctx context.Context) error {
	return nil
}

// Registry returns the prometheus registry holding the manager's collectors.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Metrics returns a copy of the per-type metrics table.
func (m *Manager) Metrics() map[core.OperationType]MetricEntry {
	return m.metrics.snapshot()
}

// Status returns the status with the given id if it is still retained.
func (m *Manager) Status(id string) (core.OperationStatus, bool) {
	return m.history.get(id)
}

// Recent returns up to n statuses, newest first.
func (m *Manager) Recent(n int) []core.OperationStatus {
	return m.history.recent(n)
}

// Execute runs req once. A Batch request runs each listed operation in
// order against one adapter and stops at the first failure; outputs of the
// operations that succeeded are kept in the result.
func (m *Manager) Execute(ctx context.Context, req core.OperationRequest, opts ...ExecuteOption) (*Result, error) {
	var eo executeOptions
	for _, opt := range opts {
		opt(&eo)
	}

	req = req.Clone()
	started := time.Now()
	status := core.OperationStatus{
		ID:        uuid.NewString(),
		Type:      req.Type,
		TargetID:  req.TargetID,
		State:     core.OperationQueued,
		StartedAt: started,
		RetryOf:   eo.retryOf,
	}
	m.history.add(status)
	result := &Result{Status: status}

	if err := core.ValidateRequest(&req); err != nil {
		err = invalidInput("validate request", err)
		m.metrics.record(req.Type, req.Provider, time.Since(started), err)
		return m.finish(result, started, err)
	}

	adapter, provider, err := m.resolve(req.Provider)
	if err != nil {
		m.metrics.record(req.Type, req.Provider, time.Since(started), err)
		return m.finish(result, started, err)
	}

	m.history.update(status.ID, func(s *core.OperationStatus) { s.State = core.OperationRunning })

	ctx, span := m.tracer.Start(ctx, "operation.execute", trace.WithAttributes(
		attribute.String("notegen.operation.id", status.ID),
		attribute.String("notegen.operation.type", string(req.Type)),
		attribute.String("notegen.operation.target", req.TargetID),
		attribute.String("notegen.provider", string(provider)),
	))
	defer span.End()

	types := []core.OperationType{req.Type}
	if req.Type == core.OperationBatch {
		types = req.Operations
	}

	var runErr error
	for _, t := range types {
		out, err := m.run(ctx, adapter, provider, req, t)
		if err != nil {
			runErr = errors.Wrapf(err, "%s", t)
			break
		}
		result.Outputs = append(result.Outputs, out)
	}
	if req.Type == core.OperationBatch {
		m.metrics.record(core.OperationBatch, string(provider), time.Since(started), runErr)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return m.finish(result, started, runErr)
}

func (m *Manager) resolve(name string) (ai.Adapter, ai.Provider, error) {
	var p ai.Provider
	if name != "" {
		parsed, err := ai.ParseProvider(name)
		if err != nil {
			return nil, "", adapterUnavailable(name, err)
		}
		p = parsed
	}
	adapter, err := m.adapters.Adapter(p)
	if err != nil {
		return nil, "", adapterUnavailable(name, err)
	}
	return adapter, adapter.Provider(), nil
}

// run executes one generator under the timeout and rate limit.
func (m *Manager) run(ctx context.Context, adapter ai.Adapter, provider ai.Provider, req core.OperationRequest, t core.OperationType) (*Output, error) {
	gen, ok := m.generators[t]
	if !ok {
		return nil, invalidInput("no generator for "+string(t), ErrNoGenerator)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	started := time.Now()
	if err := m.limiter(provider).Wait(ctx); err != nil {
		err = generationFailed("rate limit wait", err)
		m.metrics.record(t, string(provider), time.Since(started), err)
		return nil, err
	}

	sub := req
	sub.Type = t
	sub.Operations = nil
	out, err := gen.Generate(ctx, Input{Request: sub, Adapter: adapter})
	elapsed := time.Since(started)
	m.metrics.record(t, string(provider), elapsed, err)
	if err != nil {
		m.logger.Warn("operation failed", "type", t, "target", req.TargetID, "provider", provider, "elapsed", elapsed, "err", err)
		return nil, err
	}
	m.logger.Debug("operation succeeded", "type", t, "target", req.TargetID, "provider", provider, "elapsed", elapsed)
	return out, nil
}

func (m *Manager) limiter(p ai.Provider) *rate.Limiter {
	m.limitersMu.Lock()
	defer m.limitersMu.Unlock()
	l, ok := m.limiters[p]
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[p] = l
	}
	return l
}

func (m *Manager) finish(result *Result, started time.Time, err error) (*Result, error) {
	finished := time.Now()
	result.Duration = finished.Sub(started)
	result.Status.FinishedAt = finished
	result.Status.State = core.OperationSucceeded
	if err != nil {
		result.Status.State = core.OperationFailed
		result.Status.Error = err.Error()
	}
	final := result.Status
	m.history.update(final.ID, func(s *core.OperationStatus) { *s = final })
	return result, err
}
