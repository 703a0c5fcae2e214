package gemini

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/ai"
	"google.golang.org/genai"
)

// contentGenerator is the part of genai.Models the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var catalog = []ai.ModelDescriptor{
	{Name: "Gemini 2.0 Flash", APIName: "gemini-2.0-flash", Capabilities: []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON, ai.CapabilityLongInput}},
	{Name: "Gemini 2.0 Flash Lite", APIName: "gemini-2.0-flash-lite", Capabilities: []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON}},
	{Name: "Gemini 2.5 Flash", APIName: "gemini-2.5-flash", Capabilities: []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON, ai.CapabilityLongInput}},
	{Name: "Gemini 2.5 Pro", APIName: "gemini-2.5-pro", Capabilities: []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON, ai.CapabilityLongInput}},
}

// Adapter implements ai.Adapter for Gemini.
type Adapter struct {
	apiKey       string
	defaultModel string
	timeout      time.Duration
	logger       *slog.Logger

	once      sync.Once
	models    contentGenerator
	clientErr error
}

// New creates a Gemini adapter from settings.
func New(settings *ai.Settings) (*Adapter, error) {
	return &Adapter{
		apiKey:       settings.APIKey(ai.ProviderGemini),
		defaultModel: settings.Model(ai.ProviderGemini),
		timeout:      settings.RequestTimeout,
		logger:       slog.Default().With("component", "gemini-adapter"),
	}, nil
}

// NewWithGenerator creates an adapter around an existing generator.
// Used by tests.
func NewWithGenerator(settings *ai.Settings, models contentGenerator) *Adapter {
	a, _ := New(settings)
	a.once.Do(func() { a.models = models })
	return a
}

// Factory builds Gemini adapters for an ai.Registry.
func Factory(settings *ai.Settings) (ai.Adapter, error) {
	return New(settings)
}

func (a *Adapter) generator(ctx context.Context) (contentGenerator, error) {
	a.once.Do(func() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  a.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.clientErr = err
			return
		}
		a.models = client.Models
	})
	return a.models, a.clientErr
}

func (a *Adapter) Provider() ai.Provider {
	return ai.ProviderGemini
}

func (a *Adapter) GenerateResponse(ctx context.Context, prompt, modelName string) (*ai.Response, error) {
	if a.apiKey == "" {
		return nil, ai.CredentialMissing(ai.ProviderGemini)
	}
	if modelName == "" {
		modelName = a.defaultModel
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	models, err := a.generator(ctx)
	if err != nil {
		return nil, ai.ConnectionFailed(ai.ProviderGemini, err)
	}

	start := time.Now()
	resp, err := models.GenerateContent(ctx, modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	elapsed := time.Since(start)
	if err != nil {
		a.logger.Error("failed to generate content", "model", modelName, "err", err)
		return nil, classify(ctx, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("generated response", "model", modelName, "chars", len(text), "elapsed", elapsed)
	return &ai.Response{Text: text, Model: modelName, Duration: elapsed}, nil
}

func (a *Adapter) ValidateCredential(ctx context.Context) bool {
	if a.apiKey == "" {
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
	out := make([]ai.ModelDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ai.ProviderError(ai.ProviderGemini, "no candidates returned", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ai.ProviderError(ai.ProviderGemini, "response blocked by safety filter", nil)
	}
	if candidate.Content == nil {
		return "", ai.ProviderError(ai.ProviderGemini, "candidate has no content", nil)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return ai.ConnectionFailed(ai.ProviderGemini, err)
	}
	return ai.ProviderError(ai.ProviderGemini, "generate content", err)
}
