package llm

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is a test double for llms.Model.
type fakeModel struct {
	mu        sync.Mutex
	reply     string
	err       error
	noChoices bool
	delay     time.Duration
	models    []string
	prompts   []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	f.mu.Lock()
	f.models = append(f.models, opts.Model)
	for _, m := range messages {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tp.Text)
			}
		}
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoices {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func keyedSettings() *ai.Settings {
	return ai.NewSettings(ai.WithAPIKey(ai.ProviderOpenAI, "sk-test"))
}

func TestAdapter_GenerateResponse(t *testing.T) {
	fake := &fakeModel{reply: "hello there"}
	a := NewWithClient(ai.ProviderOpenAI, fake, keyedSettings())

	resp, err := a.GenerateResponse(context.Background(), "say hi", "")
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model, "empty model selects the default")
	assert.Equal(t, []string{"gpt-4o-mini"}, fake.models)
	assert.Equal(t, []string{"say hi"}, fake.prompts)
}

func TestAdapter_GenerateResponse_ExplicitModel(t *testing.T) {
	fake := &fakeModel{reply: "ok"}
	a := NewWithClient(ai.ProviderOpenAI, fake, keyedSettings())

	resp, err := a.GenerateResponse(context.Background(), "x", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, []string{"gpt-4o"}, fake.models)
}

func TestAdapter_GenerateResponse_StripsFences(t *testing.T) {
	fake := &fakeModel{reply: "```json\n{\"a\": 1}\n```"}
	a := NewWithClient(ai.ProviderOpenAI, fake, keyedSettings())

	resp, err := a.GenerateResponse(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, resp.Text)
}

func TestAdapter_GenerateResponse_Errors(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		fake := &fakeModel{reply: "unused"}
		a := NewWithClient(ai.ProviderAnthropic, fake, ai.DefaultSettings())

		_, err := a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrCredentialMissing)
		assert.Empty(t, fake.prompts, "client must not be called")
	})

	t.Run("provider error", func(t *testing.T) {
		a := NewWithClient(ai.ProviderOpenAI, &fakeModel{err: errors.New("401 unauthorized")}, keyedSettings())

		_, err := a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrProviderError)
		assert.Contains(t, err.Error(), "401 unauthorized")
	})

	t.Run("network error", func(t *testing.T) {
		netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		a := NewWithClient(ai.ProviderOpenAI, &fakeModel{err: netErr}, keyedSettings())

		_, err := a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrConnectionFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		settings := keyedSettings()
		settings.RequestTimeout = 10 * time.Millisecond
		a := NewWithClient(ai.ProviderOpenAI, &fakeModel{reply: "late", delay: time.Second}, settings)

		_, err := a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrConnectionFailed)
	})

	t.Run("no choices", func(t *testing.T) {
		a := NewWithClient(ai.ProviderOpenAI, &fakeModel{noChoices: true}, keyedSettings())

		_, err := a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrProviderError)
	})
}

func TestAdapter_ValidateCredential(t *testing.T) {
	ctx := context.Background()

	assert.True(t, NewWithClient(ai.ProviderOpenAI, &fakeModel{reply: "pong"}, keyedSettings()).ValidateCredential(ctx))
	assert.False(t, NewWithClient(ai.ProviderOpenAI, &fakeModel{reply: "pong"}, ai.DefaultSettings()).ValidateCredential(ctx))
	assert.False(t, NewWithClient(ai.ProviderOpenAI, &fakeModel{err: errors.New("401")}, keyedSettings()).ValidateCredential(ctx))
	assert.True(t, NewWithClient(ai.ProviderOllama, &fakeModel{reply: "pong"}, ai.DefaultSettings()).ValidateCredential(ctx),
		"ollama needs no key")
}

func TestAdapter_TestConnection(t *testing.T) {
	fake := &fakeModel{reply: "pong"}
	a := NewWithClient(ai.ProviderOpenAI, fake, keyedSettings())

	assert.True(t, a.TestConnection(context.Background(), "gpt-4o"))
	assert.Equal(t, []string{ai.CanaryPrompt}, fake.prompts)

	empty := NewWithClient(ai.ProviderOpenAI, &fakeModel{reply: "  "}, keyedSettings())
	assert.False(t, empty.TestConnection(context.Background(), ""))
}

func TestNew(t *testing.T) {
	t.Run("without credential builds no client", func(t *testing.T) {
		a, err := New(ai.ProviderOpenAI, ai.DefaultSettings())
		require.NoError(t, err)
		assert.Nil(t, a.client)

		_, err = a.GenerateResponse(context.Background(), "x", "")
		assert.ErrorIs(t, err, ai.ErrCredentialMissing)
	})

	t.Run("with credential", func(t *testing.T) {
		a, err := New(ai.ProviderOpenAI, keyedSettings())
		require.NoError(t, err)
		assert.NotNil(t, a.client)
		assert.Equal(t, ai.ProviderOpenAI, a.Provider())
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := New(ai.ProviderGemini, keyedSettings())
		assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	})
}

func TestCatalog(t *testing.T) {
	for _, p := range []ai.Provider{ai.ProviderOpenAI, ai.ProviderOpenRouter, ai.ProviderAnthropic, ai.ProviderOllama} {
		t.Run(string(p), func(t *testing.T) {
			models := Catalog(p)
			require.NotEmpty(t, models)

			defaults := ai.DefaultSettings()
			found := false
			for _, m := range models {
				assert.NotEmpty(t, m.APIName)
				assert.Contains(t, m.Capabilities, ai.CapabilityChat)
				if m.APIName == defaults.Model(p) {
					found = true
				}
			}
			assert.True(t, found, "default model must be in the catalog")
		})
	}

	models := Catalog(ai.ProviderOpenAI)
	models[0].APIName = "mutated"
	assert.NotEqual(t, "mutated", Catalog(ai.ProviderOpenAI)[0].APIName)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n---\ntitle: x\n---\n```", "---\ntitle: x\n---"},
		{"```yaml\ntags: [a]\n```", "tags: [a]"},
		{"  padded  ", "padded"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripCodeFences(tt.input))
	}
}
