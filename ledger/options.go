package ledger

import (
	"errors"
	"time"
)

// Options configures a Ledger.
type Options struct {
	// Cooldown suppresses repeat triggers for an item after StartCooldown.
	// Default: 5s
	Cooldown time.Duration

	// Debounce is the coalescing window for persistent writes.
	// Default: 1s
	Debounce time.Duration

	// MaxDebounce bounds how long continuous updates can postpone a write.
	// Default: 10 × Debounce
	MaxDebounce time.Duration

	// MaxHistory caps the stats ring buffer.
	// Default: 100
	MaxHistory int

	// PruneThreshold is the record count above which pruning kicks in.
	// Default: 1000
	PruneThreshold int

	// Retention is the age beyond which error-free records may be pruned.
	// Default: 30 days
	Retention time.Duration

	// Key is the blob key the snapshot is stored under.
	// Default: "ledger"
	Key string

	// Clock returns the current time. Tests substitute a fake clock.
	Clock func() time.Time
}

// Option is a functional option for configuring a Ledger.
type Option func(*Options)

// WithCooldown sets the cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(o *Options) { o.Cooldown = d }
}

// WithDebounce sets the write coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) { o.Debounce = d }
}

// WithMaxDebounce bounds how long a write can be postponed.
func WithMaxDebounce(d time.Duration) Option {
	return func(o *Options) { o.MaxDebounce = d }
}

// WithMaxHistory sets the stats ring buffer capacity.
func WithMaxHistory(n int) Option {
	return func(o *Options) { o.MaxHistory = n }
}

// WithPruneThreshold sets the record count that triggers pruning.
func WithPruneThreshold(n int) Option {
	return func(o *Options) { o.PruneThreshold = n }
}

// WithRetention sets the pruning age for error-free records.
func WithRetention(d time.Duration) Option {
	return func(o *Options) { o.Retention = d }
}

// WithKey sets the blob key.
func WithKey(key string) Option {
	return func(o *Options) { o.Key = key }
}

// WithClock substitutes the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// DefaultOptions returns Options with the documented defaults.
func DefaultOptions() *Options {
	return &Options{
		Cooldown:       5 * time.Second,
		Debounce:       time.Second,
		MaxHistory:     100,
		PruneThreshold: 1000,
		Retention:      30 * 24 * time.Hour,
		Key:            "ledger",
		Clock:          time.Now,
	}
}

// Validate checks the options and fills derived defaults.
func (o *Options) Validate() error {
	if o.Cooldown < 0 {
		return errors.New("ledger options: Cooldown cannot be negative")
	}
	if o.Debounce < 0 {
		return errors.New("ledger options: Debounce cannot be negative")
	}
	if o.MaxHistory < 1 {
		return errors.New("ledger options: MaxHistory must be at least 1")
	}
	if o.PruneThreshold < 0 {
		return errors.New("ledger options: PruneThreshold cannot be negative")
	}
	if o.Retention <= 0 {
		return errors.New("ledger options: Retention must be positive")
	}
	if o.Key == "" {
		return errors.New("ledger options: Key is required")
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.MaxDebounce < o.Debounce {
		o.MaxDebounce = 10 * o.Debounce
	}
	return nil
}
