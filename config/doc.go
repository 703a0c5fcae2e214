// Package config loads notegen's application configuration with viper.
//
// Settings come from, in increasing precedence: built-in defaults, a
// notegen.yaml (or .toml/.json) file, and NOTEGEN_* environment variables
// (NOTEGEN_BATCH_CHUNK_SIZE overrides batch.chunk_size). Provider keys are
// also read from the conventional OPENAI_API_KEY, ANTHROPIC_API_KEY,
// OPENROUTER_API_KEY and GEMINI_API_KEY variables.
//
// Watcher reloads the file on change so callers can rebuild the adapter
// registry without restarting.
package config
