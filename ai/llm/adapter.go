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


package llm

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Adapter implements ai.Adapter using a langchaingo chat model.
type Adapter struct {
	provider     ai.Provider
	client       llms.Model
	defaultModel string
	credential   bool
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates an adapter for p from settings. A provider without a credential
// still gets an adapter; its calls fail with ai.ErrCredentialMissing.
func New(p ai.Provider, settings *ai.Settings) (*Adapter, error) {
	if !Supports(p) {
		return nil, errors.Wrapf(ai.ErrUnknownProvider, "%q is not served by langchaingo", p)
	}

	a := newAdapter(p, nil, settings)
	if !a.credential {
		return a, nil
	}

	client, err := newClient(p, settings)
	if err != nil {
		return nil, ai.ProviderError(p, "create client", err)
	}
	a.client = client
	return a, nil
}

// NewWithClient creates an adapter around an existing langchaingo model.
// Tests use it to inject a fake client.
func NewWithClient(p ai.Provider, client llms.Model, settings *ai.Settings) *Adapter {
	return newAdapter(p, client, settings)
}

// Factory returns an ai.Factory building adapters for p.
func Factory(p ai.Provider) ai.Factory {
	return func(settings *ai.Settings) (ai.Adapter, error) {
		return New(p, settings)
	}
}

func newAdapter(p ai.Provider, client llms.Model, settings *ai.Settings) *Adapter {
	return &Adapter{
		provider:     p,
		client:       client,
		defaultModel: settings.Model(p),
		credential:   settings.CredentialPresent(p),
		timeout:      settings.RequestTimeout,
		logger:       slog.Default().With("component", "llm-adapter", "provider", string(p)),
	}
}

func newClient(p ai.Provider, settings *ai.Settings) (llms.Model, error) {
	model := settings.Model(p)
	switch p {
	case ai.ProviderOpenAI, ai.ProviderOpenRouter:
		opts := []openai.Option{
			openai.WithToken(settings.APIKey(p)),
			openai.WithModel(model),
		}
		if base := settings.BaseURL(p); base != "" {
			opts = append(opts, openai.WithBaseURL(base))
		}
		return openai.New(opts...)
	case ai.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(settings.APIKey(p)),
			anthropic.WithModel(model),
		}
		if base := settings.BaseURL(p); base != "" {
			opts = append(opts, anthropic.WithBaseURL(base))
		}
		return anthropic.New(opts...)
	case ai.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(model)}
		if base := settings.BaseURL(p); base != "" {
			opts = append(opts, ollama.WithServerURL(base))
		}
		return ollama.New(opts...)
	default:
		return nil, errors.Wrapf(ai.ErrUnknownProvider, "%q", p)
	}
}

func (a *Adapter) Provider() ai.Provider {
	return a.provider
}

// GenerateResponse sends prompt as a single user message. An empty modelName
// selects the configured default.
func (a *Adapter) GenerateResponse(ctx context.Context, prompt, modelName string) (*ai.Response, error) {
	if !a.credential || a.client == nil {
		return nil, ai.CredentialMissing(a.provider)
	}
	if modelName == "" {
		modelName = a.defaultModel
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	start := time.Now()
	response, err := a.client.GenerateContent(ctx, content, llms.WithModel(modelName), llms.WithTemperature(0.2))
	elapsed := time.Since(start)
	if err != nil {
		a.logger.Error("failed to generate content", "model", modelName, "err", err)
		return nil, a.classify(ctx, err)
	}
	if len(response.Choices) < 1 {
		a.logger.Debug("no choices returned from model", "model", modelName)
		return nil, ai.ProviderError(a.provider, "no choices returned", nil)
	}

	text := stripCodeFences(response.Choices[0].Content)
	a.logger.Debug("generated response", "model", modelName, "chars", len(text), "elapsed", elapsed)
	return &ai.Response{Text: text, Model: modelName, Duration: elapsed}, nil
}

// ValidateCredential sends the canary prompt to the default model.
func (a *Adapter) ValidateCredential(ctx context.Context) bool {
	if !a.credential {
		return false
	}
	return a.TestConnection(ctx, "")
}

func (a *Adapter) TestConnection(ctx context.Context, modelName string) bool {
	resp, err := a.GenerateResponse(ctx, ai.CanaryPrompt, modelName)
	if err != nil {
		a.logger.Warn("connection test failed", "model", modelName, "err", err)
		return false
	}
	return resp.Text != ""
}

func (a *Adapter) ListModels() []ai.ModelDescriptor {
	return Catalog(a.provider)
}

// classify maps a client error onto the adapter error kinds. Transport and
// deadline failures are connection failures, everything else is the
// provider's answer.
func (a *Adapter) classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return ai.ConnectionFailed(a.provider, err)
	case errors.As(err, &netErr):
		return ai.ConnectionFailed(a.provider, err)
	default:
		return ai.ProviderError(a.provider, "generate content", err)
	}
}
