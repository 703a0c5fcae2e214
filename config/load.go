package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTEGEN_AI_PROVIDER.
const EnvPrefix = "NOTEGEN"

// providerKeyEnv maps providers to the conventional variables that also
// supply their credentials.
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// SetDefaults installs the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.request_timeout", 2*time.Minute)

	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.path", defaultDataPath())
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.gc_interval", 10*time.Minute)
	for _, key := range []string{"bucket", "prefix", "region", "endpoint", "access_key_id", "secret_access_key"} {
		v.SetDefault("storage.s3."+key, "")
	}
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("ledger.key", "ledger")
	v.SetDefault("ledger.cooldown", 5*time.Second)
	v.SetDefault("ledger.debounce", time.Second)
	v.SetDefault("ledger.max_debounce", 10*time.Second)
	v.SetDefault("ledger.max_history", 100)
	v.SetDefault("ledger.prune_threshold", 1000)
	v.SetDefault("ledger.retention", 30*24*time.Hour)

	v.SetDefault("operations.timeout", 2*time.Minute)
	v.SetDefault("operations.rate_limit", 0)
	v.SetDefault("operations.burst", 1)
	v.SetDefault("operations.history_size", 256)
	v.SetDefault("operations.queue_concurrency", 3)
	v.SetDefault("operations.max_bloom_notes", 5)

	v.SetDefault("batch.front_matter", true)
	v.SetDefault("batch.wikilinks", true)
	v.SetDefault("batch.ontology", false)
	v.SetDefault("batch.knowledge_bloom", false)
	v.SetDefault("batch.chunk_size", 10)
	v.SetDefault("batch.chunk_delay", time.Second)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.retry_delay", 500*time.Millisecond)
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("batch.user_context", "")

	v.SetDefault("vault.path", ".")
	v.SetDefault("vault.bloom_dir", "")
	v.SetDefault("vault.concepts_field", "concepts")

	v.SetDefault("server.addr", "127.0.0.1:8089")
}

func defaultDataPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "notegen", "ledger")
	}
	return ".notegen"
}

// newViper builds a viper instance with defaults and environment bindings.
// A non-empty path names the config file; otherwise notegen.{yaml,toml,json}
// is searched in the working directory and the user config directory.
func newViper(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for provider, env := range providerKeyEnv {
		key := "ai.api_keys." + provider
		_ = v.BindEnv(key, EnvPrefix+"_AI_API_KEYS_"+strings.ToUpper(provider), env)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("notegen")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "notegen"))
		}
	}
	return v
}

// Load reads configuration from path (or the search path when empty),
// applies environment overrides and validates the result. A missing config
// file is not an error when searching; every setting has a default.
func Load(path string) (*Config, error) {
	return load(newViper(path), path != "")
}

// Default returns the default configuration without reading files or the
// environment.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

func load(v *viper.Viper, explicit bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
