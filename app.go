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


package notegen

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/ai/gemini"
	"github.com/poiesic/notegen/ai/llm"
	"github.com/poiesic/notegen/api"
	"github.com/poiesic/notegen/batch"
	"github.com/poiesic/notegen/config"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/notify"
	"github.com/poiesic/notegen/operation"
	"github.com/poiesic/notegen/queue"
	"github.com/poiesic/notegen/registry"
	"github.com/poiesic/notegen/storage"
	"github.com/poiesic/notegen/storage/badger"
	"github.com/poiesic/notegen/storage/postgres"
	"github.com/poiesic/notegen/storage/s3"
	"github.com/poiesic/notegen/storage/sqlite"
	"github.com/poiesic/notegen/vault"
)

// Service IDs in the lifecycle registry.
const (
	ServiceStore      = "store"
	ServiceAdapters   = "adapters"
	ServiceLedger     = "ledger"
	ServiceOperations = "operations"
	ServiceVault      = "vault"
	ServiceBatch      = "batch"
	ServiceTriggers   = "triggers"
)

// App wires the notegen components over one vault and one ledger store.
type App struct {
	logger   *slog.Logger
	notifier notify.Sink

	mu  sync.RWMutex
	cfg *config.Config

	services   *registry.Registry
	store      storage.BlobStore
	adapters   *ai.Registry
	ledger     *ledger.Ledger
	operations *operation.Manager
	vault      *vault.Vault
	processor  *batch.Processor
	triggers   *queue.Queue[core.ItemRef]
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	logger    *slog.Logger
	notifier  notify.Sink
	store     storage.BlobStore
	factories map[ai.Provider]ai.Factory
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *appOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier sets the sink for user-facing notices.
// Default logs them.
func WithNotifier(sink notify.Sink) Option {
	return func(o *appOptions) { o.notifier = sink }
}

// WithStore uses store for the ledger instead of opening the configured
// backend. The App still closes it on shutdown.
func WithStore(store storage.BlobStore) Option {
	return func(o *appOptions) { o.store = store }
}

// WithFactories replaces the adapter factories.
func WithFactories(factories map[ai.Provider]ai.Factory) Option {
	return func(o *appOptions) { o.factories = factories }
}

// DefaultFactories returns a factory for every supported provider.
func DefaultFactories() map[ai.Provider]ai.Factory {
	return map[ai.Provider]ai.Factory{
		ai.ProviderOpenAI:     llm.Factory(ai.ProviderOpenAI),
		ai.ProviderOpenRouter: llm.Factory(ai.ProviderOpenRouter),
		ai.ProviderAnthropic:  llm.Factory(ai.ProviderAnthropic),
		ai.ProviderOllama:     llm.Factory(ai.ProviderOllama),
		ai.ProviderGemini:     gemini.Factory,
	}
}

// OpenStore opens the blob store selected by cfg.Storage.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "badger":
		return badger.NewStore(cfg.Storage.Path, badger.WithValueLogGC(cfg.Storage.GCInterval))
	case "sqlite":
		return sqlite.Open(ctx, cfg.Storage.Path)
	case "postgres":
		return postgres.Open(ctx, cfg.Storage.DSN)
	case "s3":
		return s3.New(ctx, cfg.S3())
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, errors.Newf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// New builds every component and registers it with the lifecycle registry.
// Nothing is initialized until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("notegen: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &appOptions{
		logger:    slog.Default(),
		factories: DefaultFactories(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogSink(o.logger)
	}

	a := &App{
		logger:   o.logger.With("component", "app"),
		notifier: o.notifier,
		cfg:      cfg,
	}

	settings, err := cfg.AISettings()
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = OpenStore(ctx, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s store", cfg.Storage.Backend)
		}
	}
	a.store = store

	if err := a.build(cfg, settings, o); err != nil {
		if cerr := store.Close(); cerr != nil {
			a.logger.Error("error closing store", "err", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, settings *ai.Settings, o *appOptions) error {
	var err error
	if a.adapters, err = ai.NewRegistry(settings, o.factories); err != nil {
		return err
	}
	if a.ledger, err = ledger.New(a.store, cfg.LedgerOptions()...); err != nil {
		return err
	}
	opOpts := append(cfg.OperationOptions(), operation.WithLogger(o.logger))
	if a.operations, err = operation.NewManager(a.adapters, opOpts...); err != nil {
		return err
	}
	a.vault, err = vault.Open(cfg.Vault.Path,
		vault.WithLogger(o.logger),
		vault.WithBloomDir(cfg.Vault.BloomDir),
		vault.WithConceptsField(cfg.Vault.ConceptsField),
	)
	if err != nil {
		return err
	}
	a.processor, err = batch.NewProcessor(a.operations, a.ledger, a.vault,
		batch.WithResultSink(a.vault),
		batch.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}
	a.triggers, err = queue.New(
		func(item core.ItemRef) string { return item.ID },
		a.handleTrigger,
		cfg.Operations.QueueConcurrency,
		queue.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	a.services = registry.New(registry.WithLogger(o.logger))
	regs := []struct {
		id   string
		svc  registry.Service
		deps []string
	}{
		{ServiceStore, storeService{a.store}, nil},
		{ServiceAdapters, a.adapters, nil},
		{ServiceLedger, a.ledger, []string{ServiceStore}},
		{ServiceOperations, a.operations, []string{ServiceAdapters}},
		{ServiceVault, a.vault, nil},
		{ServiceBatch, a.processor, []string{ServiceOperations, ServiceLedger, ServiceVault}},
		{ServiceTriggers, a.triggers, []string{ServiceBatch}},
	}
	for _, r := range regs {
		if err := a.services.Register(r.id, r.svc, r.deps...); err != nil {
			a.triggers.Release()
			return err
		}
	}
	return nil
}

// storeService gives the blob store a lifecycle: it is opened by New and
// closed last.
type storeService struct {
	storage.BlobStore
}

func (s storeService) Initialize(ctx context.Context) error { return nil }

func (s storeService) Destroy(ctx context.Context) error { return s.Close() }

// Start initializes every service in dependency order.
func (a *App) Start(ctx context.Context) error {
	if err := a.services.InitializeAll(ctx); err != nil {
		return err
	}
	a.logger.Info("notegen started", "vault", a.vault.Root(), "provider", a.adapters.DefaultProvider())
	return nil
}

// Close stops every service in reverse order. Queued single-item triggers
// that have not started are dropped.
func (a *App) Close(ctx context.Context) error {
	return a.services.DestroyAll(ctx)
}

// Ready reports whether Start completed and Close has not run.
func (a *App) Ready() bool {
	return a.services.Ready()
}

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *App) Services() *registry.Registry { return a.services }
func (a *App) Adapters() *ai.Registry { return a.adapters }
func (a *App) Ledger() *ledger.Ledger { return a.ledger }
func (a *App) Operations() *operation.Manager { return a.operations }
func (a *App) Vault() *vault.Vault { return a.vault }
func (a *App) Processor() *batch.Processor { return a.processor }
func (a *App) Triggers() *queue.Queue[core.ItemRef] { return a.triggers }

// Reload applies a new configuration to the running app. Adapter settings
// and batch defaults take effect immediately; storage, ledger and vault
// settings need a restart.
func (a *App) Reload(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("notegen: config is required")
	}
	settings, err := cfg.AISettings()
	if err != nil {
		return err
	}
	if err := a.adapters.Reload(settings); err != nil {
		return err
	}

	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	if prev.Storage != cfg.Storage || prev.Vault != cfg.Vault || prev.Ledger != cfg.Ledger {
		a.logger.Warn("storage, ledger and vault changes apply after a restart")
	}
	a.logger.Info("configuration reloaded", "provider", settings.Provider)
	return nil
}

// BatchOptions returns run options from the current configuration with the
// vault's note titles as link candidates.
func (a *App) BatchOptions(ctx context.Context) *batch.Options {
	opts := a.Config().BatchOptions()
	if needsCandidates(opts) {
		titles, err := a.vault.Titles(ctx)
		if err != nil {
			a.logger.Warn("could not list link candidates", "err", err)
		} else {
			opts.Candidates = titles
		}
	}
	return opts
}

func needsCandidates(opts *batch.Options) bool {
	return opts.GenerateWikilinks ||
		slices.Contains(opts.Operations, core.OperationWikilinks) ||
		slices.Contains(opts.Operations, core.OperationKnowledgeBloom)
}

// Run processes every note in the vault. A nil opts uses BatchOptions.
func (a *App) Run(ctx context.Context, opts *batch.Options) (*batch.Result, error) {
	if !a.Ready() {
		return nil, errors.Wrap(registry.ErrNotInitialized, "run")
	}
	items, err := a.vault.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = a.BatchOptions(ctx)
	} else if opts.Candidates == nil && needsCandidates(opts) {
		opts.Candidates = make([]string, 0, len(items))
		for _, item := range items {
			opts.Candidates = append(opts.Candidates, vault.Title(item.ID))
		}
	}

	a.notifier.Notify(fmt.Sprintf("Processing %d notes", len(items)), notify.LevelInfo)
	result, err := a.processor.Run(ctx, items, opts)
	if err != nil {
		a.notifier.Notify("Batch could not start: "+err.Error(), notify.LevelError)
		return nil, err
	}

	level := notify.LevelSuccess
	switch {
	case result.Cancelled:
		level = notify.LevelWarning
	case result.Errors > 0:
		level = notify.LevelWarning
	}
	a.notifier.Notify(fmt.Sprintf("Processed %d notes, %d skipped, %d failed",
		result.Processed, result.Skipped, result.Errors), level)

	if err := a.ledger.Flush(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("ledger flush failed", "err", err)
	}
	return result, nil
}

// Stop asks an active batch run to stop after its current chunk.
func (a *App) Stop() {
	a.processor.Stop()
}

// TriggerItem queues one note for processing. Unless force is set, a note
// the ledger considers up to date (or in cooldown) is rejected with
// ledger.ErrUpToDate. A note already queued or running is rejected with
// queue.ErrDuplicate.
func (a *App) TriggerItem(ctx context.Context, id string, force bool) error {
	if !a.Ready() {
		return errors.Wrap(registry.ErrNotInitialized, "trigger")
	}
	item, err := a.vault.Stat(ctx, id)
	if err != nil {
		return err
	}
	if force {
		a.ledger.Reset(item.ID)
	}
	if !a.ledger.NeedsProcessing(item.ID, item.ModifiedAt) {
		return errors.Wrapf(ledger.ErrUpToDate, "%s", item.ID)
	}
	// cooldown starts before the handler can run and mark the item
	a.ledger.StartCooldown(item.ID)
	if err := a.triggers.Enqueue(item); err != nil {
		return err
	}
	a.logger.Debug("item queued", "item", item.ID, "force", force)
	return nil
}

func (a *App) handleTrigger(ctx context.Context, item core.ItemRef) error {
	title := vault.Title(item.ID)
	if err := a.processor.ProcessItem(ctx, item, a.BatchOptions(ctx)); err != nil {
		a.notifier.Notify(fmt.Sprintf("Processing %s failed: %v", title, err), notify.LevelError)
		return err
	}
	a.notifier.Notify("Processed "+title, notify.LevelSuccess)
	return nil
}

// Handler returns the HTTP API backed by this app.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Ready:      a.Ready,
		Stats:      a.ledger,
		Operations: a.operations,
		Trigger:    a,
		Gatherer:   a.operations.Registry(),
		Logger:     a.logger,
	})
}
