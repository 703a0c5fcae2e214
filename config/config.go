package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/batch"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/operation"
	"github.com/poiesic/notegen/storage/s3"
)

// Config is the application configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	AI         AIConfig         `mapstructure:"ai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Operations OperationsConfig `mapstructure:"operations"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Server     ServerConfig     `mapstructure:"server"`
}

// AIConfig selects the provider and holds per-provider credentials, models
// and endpoints, keyed by provider name.
type AIConfig struct {
	Provider       string            `mapstructure:"provider" validate:"required"`
	APIKeys        map[string]string `mapstructure:"api_keys"`
	Models         map[string]string `mapstructure:"models"`
	BaseURLs       map[string]string `mapstructure:"base_urls"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" validate:"gte=0"`
}

// StorageConfig selects the blob store that persists the ledger.
type StorageConfig struct {
	Backend string   `mapstructure:"backend" validate:"oneof=badger sqlite postgres s3 memory"`
	Path    string   `mapstructure:"path" validate:"required_if=Backend badger,required_if=Backend sqlite"`
	DSN     string   `mapstructure:"dsn" validate:"required_if=Backend postgres"`
	S3      S3Config `mapstructure:"s3"`

	// GCInterval is how often the badger backend reclaims value log space.
	GCInterval time.Duration `mapstructure:"gc_interval" validate:"gte=0"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// LedgerConfig tunes the processing ledger.
type LedgerConfig struct {
	Key            string        `mapstructure:"key" validate:"required"`
	Cooldown       time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	Debounce       time.Duration `mapstructure:"debounce" validate:"gt=0"`
	MaxDebounce    time.Duration `mapstructure:"max_debounce" validate:"gte=0"`
	MaxHistory     int           `mapstructure:"max_history" validate:"gte=1"`
	PruneThreshold int           `mapstructure:"prune_threshold" validate:"gte=1"`
	Retention      time.Duration `mapstructure:"retention" validate:"gt=0"`
}

// OperationsConfig tunes the operation manager and the single-item queue.
type OperationsConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RateLimit        float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst            int           `mapstructure:"burst" validate:"gte=0"`
	HistorySize      int           `mapstructure:"history_size" validate:"gte=1"`
	QueueConcurrency int           `mapstructure:"queue_concurrency" validate:"gte=1"`
	MaxBloomNotes    int           `mapstructure:"max_bloom_notes" validate:"gte=1"`
}

// BatchConfig holds the defaults for batch runs.
type BatchConfig struct {
	FrontMatter    bool          `mapstructure:"front_matter"`
	Wikilinks      bool          `mapstructure:"wikilinks"`
	Ontology       bool          `mapstructure:"ontology"`
	KnowledgeBloom bool          `mapstructure:"knowledge_bloom"`
	ChunkSize      int           `mapstructure:"chunk_size" validate:"gte=1"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay" validate:"gte=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	MaxConcurrent  int           `mapstructure:"max_concurrent" validate:"gte=1"`
	UserContext    string        `mapstructure:"user_context"`
}

// VaultConfig locates the notes.
type VaultConfig struct {
	Path          string `mapstructure:"path"`
	BloomDir      string `mapstructure:"bloom_dir"`
	ConceptsField string `mapstructure:"concepts_field"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and that the AI section describes
// usable settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return errors.New("invalid configuration: storage.s3.bucket is required for the s3 backend")
	}
	if _, err := c.AISettings(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// AISettings converts the AI section into adapter registry settings.
func (c *Config) AISettings() (*ai.Settings, error) {
	provider, err := ai.ParseProvider(c.AI.Provider)
	if err != nil {
		return nil, err
	}
	settings := ai.DefaultSettings()
	settings.Provider = provider
	settings.RequestTimeout = c.AI.RequestTimeout

	copyInto := func(dst map[ai.Provider]string, src map[string]string) error {
		for name, value := range src {
			p, err := ai.ParseProvider(name)
			if err != nil {
				return err
			}
			if value = strings.TrimSpace(value); value != "" {
				dst[p] = value
			}
		}
		return nil
	}
	if err := copyInto(settings.APIKeys, c.AI.APIKeys); err != nil {
		return nil, err
	}
	if err := copyInto(settings.SelectedModels, c.AI.Models); err != nil {
		return nil, err
	}
	if err := copyInto(settings.BaseURLs, c.AI.BaseURLs); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// LedgerOptions converts the ledger section into ledger options.
func (c *Config) LedgerOptions() []ledger.Option {
	opts := []ledger.Option{
		ledger.WithKey(c.Ledger.Key),
		ledger.WithCooldown(c.Ledger.Cooldown),
		ledger.WithDebounce(c.Ledger.Debounce),
		ledger.WithMaxHistory(c.Ledger.MaxHistory),
		ledger.WithPruneThreshold(c.Ledger.PruneThreshold),
		ledger.WithRetention(c.Ledger.Retention),
	}
	if c.Ledger.MaxDebounce > 0 {
		opts = append(opts, ledger.WithMaxDebounce(c.Ledger.MaxDebounce))
	}
	return opts
}

// OperationOptions converts the operations section into manager options.
func (c *Config) OperationOptions() []operation.Option {
	opts := []operation.Option{
		operation.WithTimeout(c.Operations.Timeout),
		operation.WithHistorySize(c.Operations.HistorySize),
	}
	if c.Operations.MaxBloomNotes != operation.DefaultMaxBloomNotes {
		opts = append(opts, operation.WithGenerators(operation.NewKnowledgeBloomGenerator(c.Operations.MaxBloomNotes)))
	}
	if c.Operations.RateLimit > 0 {
		opts = append(opts, operation.WithRateLimit(c.Operations.RateLimit, c.Operations.Burst))
	}
	return opts
}

// BatchOptions returns batch run options seeded from the batch section.
func (c *Config) BatchOptions() *batch.Options {
	opts := batch.DefaultOptions()
	opts.GenerateFrontMatter = c.Batch.FrontMatter
	opts.GenerateWikilinks = c.Batch.Wikilinks
	opts.Operations = nil
	if c.Batch.Ontology {
		opts.Operations = append(opts.Operations, core.OperationOntology)
	}
	if c.Batch.KnowledgeBloom {
		opts.Operations = append(opts.Operations, core.OperationKnowledgeBloom)
	}
	opts.ChunkSize = c.Batch.ChunkSize
	opts.ChunkDelay = c.Batch.ChunkDelay
	opts.MaxRetries = c.Batch.MaxRetries
	opts.RetryDelay = c.Batch.RetryDelay
	opts.MaxConcurrent = c.Batch.MaxConcurrent
	opts.UserContext = c.Batch.UserContext
	return opts
}

// S3 converts the s3 section into store parameters.
func (c *Config) S3() s3.Config {
	return s3.Config{
		Region:          c.Storage.S3.Region,
		Bucket:          c.Storage.S3.Bucket,
		Prefix:          c.Storage.S3.Prefix,
		Endpoint:        c.Storage.S3.Endpoint,
		AccessKeyID:     c.Storage.S3.AccessKeyID,
		SecretAccessKey: c.Storage.S3.SecretAccessKey,
		PathStyle:       c.Storage.S3.PathStyle,
	}
}
