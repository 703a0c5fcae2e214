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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Settings is the shape of the provider configuration handed to the core:
// which provider is active, the credentials per provider and the selected
// model per provider.
type Settings struct {
	// Provider is the default provider used when a request does not name one.
	Provider Provider

	// APIKeys holds the credential for each provider.
	APIKeys map[Provider]string

	// SelectedModels holds the default model for each provider.
	SelectedModels map[Provider]string

	// BaseURLs overrides the API endpoint per provider.
	// Example: "http://localhost:11434" for Ollama, "http://localhost:8080/v1"
	// for a self-hosted OpenAI-compatible server.
	BaseURLs map[Provider]string

	// RequestTimeout bounds a single provider call. Zero disables the bound.
	// Default: 2m
	RequestTimeout time.Duration
}

// SettingsOption is a functional option for configuring Settings.
type SettingsOption func(*Settings)

// WithProvider sets the default provider.
func WithProvider(p Provider) SettingsOption {
	return func(s *Settings) {
		s.Provider = p
	}
}

// WithAPIKey sets the credential for a provider.
func WithAPIKey(p Provider, key string) SettingsOption {
	return func(s *Settings) {
		s.APIKeys[p] = key
	}
}

// WithModel sets the default model for a provider.
func WithModel(p Provider, model string) SettingsOption {
	return func(s *Settings) {
		s.SelectedModels[p] = model
	}
}

// WithBaseURL overrides the endpoint for a provider.
func WithBaseURL(p Provider, url string) SettingsOption {
	return func(s *Settings) {
		s.BaseURLs[p] = url
	}
}

// WithRequestTimeout sets the per-call timeout.
func WithRequestTimeout(d time.Duration) SettingsOption {
	return func(s *Settings) {
		s.RequestTimeout = d
	}
}

// DefaultSettings returns Settings with sensible defaults. No credentials are set.
func DefaultSettings() *Settings {
	return &Settings{
		Provider: ProviderOpenAI,
		APIKeys:  map[Provider]string{},
		SelectedModels: map[Provider]string{
			ProviderOpenAI:     "gpt-4o-mini",
			ProviderOpenRouter: "openai/gpt-4o-mini",
			ProviderAnthropic:  "claude-3-5-haiku-latest",
			ProviderOllama:     "qwen2.5:3b",
			ProviderGemini:     "gemini-2.0-flash",
		},
		BaseURLs: map[Provider]string{
			ProviderOpenRouter: "https://openrouter.ai/api/v1",
			ProviderOllama:     "http://localhost:11434",
		},
		RequestTimeout: 2 * time.Minute,
	}
}

// NewSettings creates Settings with the default values and applies the provided options.
//
// Example:
//
//	s := NewSettings(
//	    WithProvider(ProviderAnthropic),
//	    WithAPIKey(ProviderAnthropic, os.Getenv("ANTHROPIC_API_KEY")),
//	)
func NewSettings(opts ...SettingsOption) *Settings {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	c := *s
	c.APIKeys = cloneMap(s.APIKeys)
	c.SelectedModels = cloneMap(s.SelectedModels)
	c.BaseURLs = cloneMap(s.BaseURLs)
	return &c
}

// APIKey returns the trimmed credential for p.
func (s *Settings) APIKey(p Provider) string {
	return strings.TrimSpace(s.APIKeys[p])
}

// Model returns the selected model for p.
func (s *Settings) Model(p Provider) string {
	return s.SelectedModels[p]
}

// BaseURL returns the endpoint override for p.
func (s *Settings) BaseURL(p Provider) string {
	return s.BaseURLs[p]
}

// CredentialPresent reports whether p can be used with the current credentials.
func (s *Settings) CredentialPresent(p Provider) bool {
	if !p.RequiresCredential() {
		return true
	}
	return s.APIKey(p) != ""
}

// Normalize ensures the settings are in a canonical form.
// OpenAI-compatible endpoints get the /v1 suffix most servers require
// (LocalAI, vLLM, llama.cpp); the Ollama endpoint loses any trailing slash.
func (s *Settings) Normalize() {
	if s.APIKeys == nil {
		s.APIKeys = map[Provider]string{}
	}
	if s.SelectedModels == nil {
		s.SelectedModels = map[Provider]string{}
	}
	if s.BaseURLs == nil {
		s.BaseURLs = map[Provider]string{}
	}
	if host := s.BaseURLs[ProviderOpenAI]; host != "" && !strings.HasSuffix(host, "/v1") {
		s.BaseURLs[ProviderOpenAI] = strings.TrimSuffix(host, "/") + "/v1"
	}
	if host := s.BaseURLs[ProviderOllama]; host != "" {
		s.BaseURLs[ProviderOllama] = strings.TrimSuffix(host, "/")
	}
}

// Validate checks that the settings are valid and complete.
// It automatically normalizes the settings before validation.
func (s *Settings) Validate() error {
	s.Normalize()

	if s.Provider == "" {
		return errors.New("ai settings: Provider is required")
	}
	if _, err := ParseProvider(string(s.Provider)); err != nil {
		return err
	}
	for p := range s.APIKeys {
		if _, err := ParseProvider(string(p)); err != nil {
			return err
		}
	}
	if s.RequestTimeout < 0 {
		return errors.New("ai settings: RequestTimeout cannot be negative")
	}
	return nil
}

func cloneMap(m map[Provider]string) map[Provider]string {
	c := make(map[Provider]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
