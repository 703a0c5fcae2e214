package ai

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
)

// Factory builds the adapter for one provider from the current settings.
// Factories must be cheap and free of side effects: no network calls.
type Factory func(settings *Settings) (Adapter, error)

// Registry maps providers to adapters. The table is built once per settings
// value and replaced wholesale by Reload, never patched in place.
type Registry struct {
	mu        sync.RWMutex
	factories map[Provider]Factory
	adapters  map[Provider]Adapter
	settings  *Settings
	logger    *slog.Logger
}

// NewRegistry creates a registry for the given factories and builds the
// adapter table from settings.
func NewRegistry(settings *Settings, factories map[Provider]Factory) (*Registry, error) {
	if len(factories) == 0 {
		return nil, errors.New("adapter registry: no factories supplied")
	}
	r := &Registry{
		factories: make(map[Provider]Factory, len(factories)),
		logger:    slog.Default().With("component", "adapter-registry"),
	}
	for p, f := range factories {
		r.factories[p] = f
	}
	if err := r.Reload(settings); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload validates settings and rebuilds the complete adapter table. On
// error the previous table stays in place.
func (r *Registry) Reload(settings *Settings) error {
	if settings == nil {
		settings = DefaultSettings()
	}
	settings = settings.Clone()
	if err := settings.Validate(); err != nil {
		return err
	}

	adapters := make(map[Provider]Adapter, len(r.factories))
	for p, factory := range r.factories {
		adapter, err := factory(settings)
		if err != nil {
			return errors.Wrapf(err, "build %s adapter", p)
		}
		adapters[p] = adapter
	}

	r.mu.Lock()
	r.adapters = adapters
	r.settings = settings
	r.mu.Unlock()

	r.logger.Debug("adapter table rebuilt", "providers", len(adapters), "default", settings.Provider)
	return nil
}

// Initialize checks that the default provider has an adapter.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.adapters[r.settings.Provider]; !ok {
		return errors.Wrapf(ErrUnknownProvider, "default provider %q has no adapter", r.settings.Provider)
	}
	if !r.settings.CredentialPresent(r.settings.Provider) {
		r.logger.Warn("default provider has no credential configured", "provider", r.settings.Provider)
	}
	return nil
}

// Destroy is a no-op; adapters hold no resources that need explicit release.
func (r *Registry) Destroy(ctx context.Context) error {
	return nil
}

// Settings returns a copy of the active settings.
func (r *Registry) Settings() *Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.Clone()
}

// DefaultProvider returns the configured default provider.
func (r *Registry) DefaultProvider() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.Provider
}

// Adapter returns the adapter for p. An empty p selects the default provider.
func (r *Registry) Adapter(p Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p == "" {
		p = r.settings.Provider
	}
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", p)
	}
	return adapter, nil
}

// Providers returns the registered providers in display order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]Provider, 0, len(r.adapters))
	for p := range r.adapters {
		providers = append(providers, p)
	}
	slices.SortFunc(providers, func(a, b Provider) int {
		return slices.Index(Providers, a) - slices.Index(Providers, b)
	})
	return providers
}

// ListAvailableModels returns the model catalog for p.
func (r *Registry) ListAvailableModels(p Provider) ([]ModelDescriptor, error) {
	adapter, err := r.Adapter(p)
	if err != nil {
		return nil, err
	}
	return adapter.ListModels(), nil
}

// ValidateCredential reports whether p's credential works. Unknown
// providers report false.
func (r *Registry) ValidateCredential(ctx context.Context, p Provider) bool {
	adapter, err := r.Adapter(p)
	if err != nil {
		return false
	}
	return adapter.ValidateCredential(ctx)
}

// TestConnection sends the canary prompt to modelName on p.
func (r *Registry) TestConnection(ctx context.Context, p Provider, modelName string) bool {
	adapter, err := r.Adapter(p)
	if err != nil {
		return false
	}
	return adapter.TestConnection(ctx, modelName)
}

// Descriptors recomputes the AdapterDescriptor of every registered provider.
func (r *Registry) Descriptors() []AdapterDescriptor {
	providers := r.Providers()

	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors := make([]AdapterDescriptor, 0, len(providers))
	for _, p := range providers {
		descriptors = append(descriptors, AdapterDescriptor{
			Provider:          p,
			AvailableModels:   r.adapters[p].ListModels(),
			CredentialPresent: r.settings.CredentialPresent(p),
		})
	}
	return descriptors
}
