package ai

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Provider identifies an AI provider.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOllama     Provider = "ollama"
	ProviderGemini     Provider = "gemini"
)

// Providers lists every known provider in display order.
var Providers = []Provider{
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderAnthropic,
	ProviderOllama,
	ProviderGemini,
}

// ParseProvider converts a user supplied name to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "ollama", "local":
		return ProviderOllama, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return "", errors.WithHint(
			errors.Wrapf(ErrUnknownProvider, "%q", s),
			"valid providers: openai, openrouter, anthropic, ollama, gemini")
	}
}

// RequiresCredential reports whether the provider needs an API key.
func (p Provider) RequiresCredential() bool {
	return p != ProviderOllama
}
