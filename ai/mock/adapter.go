package mock

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/notegen/ai"
)

// DefaultResponse is returned by GenerateResponse when no GenerateFunc is set.
const DefaultResponse = "mock response"

// MockAdapter is a test double for ai.Adapter.
// It allows custom behavior injection via function fields and is safe for
// concurrent use.
type MockAdapter struct {
	// GenerateFunc is called by GenerateResponse if set.
	GenerateFunc func(ctx context.Context, prompt, modelName string) (*ai.Response, error)

	// Credential is reported by ValidateCredential. When false,
	// GenerateResponse fails with ai.ErrCredentialMissing unless GenerateFunc
	// is set.
	Credential bool

	// Models is returned by ListModels if non-nil.
	Models []ai.ModelDescriptor

	provider ai.Provider

	mu      sync.Mutex
	calls   int
	prompts []string
}

// NewMockAdapter creates a mock adapter for p with a valid credential.
func NewMockAdapter(p ai.Provider) *MockAdapter {
	return &MockAdapter{provider: p, Credential: true}
}

// Factory returns an ai.Factory that always hands out m.
func (m *MockAdapter) Factory() ai.Factory {
	return func(*ai.Settings) (ai.Adapter, error) {
		return m, nil
	}
}

func (m *MockAdapter) Provider() ai.Provider {
	return m.provider
}

// GenerateResponse records the prompt and returns the configured response.
func (m *MockAdapter) GenerateResponse(ctx context.Context, prompt, modelName string) (*ai.Response, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	credential := m.Credential
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, modelName)
	}
	if !credential {
		return nil, ai.CredentialMissing(m.provider)
	}
	if err := ctx.Err(); err != nil {
		return nil, ai.ConnectionFailed(m.provider, err)
	}
	if modelName == "" {
		modelName = string(m.provider) + "-default"
	}
	return &ai.Response{Text: DefaultResponse, Model: modelName, Duration: time.Millisecond}, nil
}

func (m *MockAdapter) ValidateCredential(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Credential
}

func (m *MockAdapter) TestConnection(ctx context.Context, modelName string) bool {
	resp, err := m.GenerateResponse(ctx, ai.CanaryPrompt, modelName)
	return err == nil && resp.Text != ""
}

func (m *MockAdapter) ListModels() []ai.ModelDescriptor {
	if m.Models != nil {
		return m.Models
	}
	return []ai.ModelDescriptor{{
		Name:         string(m.provider) + " mock",
		APIName:      string(m.provider) + "-default",
		Capabilities: []ai.Capability{ai.CapabilityChat},
	}}
}

// CallCount returns the number of GenerateResponse calls.
func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockAdapter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockAdapter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset clears the call history and injected behavior.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.prompts = nil
	m.GenerateFunc = nil
}
