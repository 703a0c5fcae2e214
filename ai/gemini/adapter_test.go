package gemini

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	models []string
	texts  []string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.models = append(f.models, model)
	for _, c := range contents {
		for _, p := range c.Parts {
			f.texts = append(f.texts, p.Text)
		}
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content, FinishReason: genai.FinishReasonStop}},
	}
}

func keyed() *ai.Settings {
	return ai.NewSettings(ai.WithAPIKey(ai.ProviderGemini, "g-key"))
}

func TestAdapter_GenerateResponse(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse("hello ", "world")}
	a := NewWithGenerator(keyed(), fake)

	resp, err := a.GenerateResponse(context.Background(), "greet", "")
	require.NoError(t, err)

	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
	assert.Equal(t, []string{"gemini-2.0-flash"}, fake.models)
	assert.Equal(t, []string{"greet"}, fake.texts)
}

func TestAdapter_GenerateResponse_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing credential", func(t *testing.T) {
		fake := &fakeGenerator{resp: textResponse("x")}
		a := NewWithGenerator(ai.DefaultSettings(), fake)

		_, err := a.GenerateResponse(ctx, "x", "")
		assert.ErrorIs(t, err, ai.ErrCredentialMissing)
		assert.Empty(t, fake.models)
	})

	t.Run("api error", func(t *testing.T) {
		a := NewWithGenerator(keyed(), &fakeGenerator{err: errors.New("Error 400, Message: API key not valid")})

		_, err := a.GenerateResponse(ctx, "x", "")
		assert.ErrorIs(t, err, ai.ErrProviderError)
	})

	t.Run("no candidates", func(t *testing.T) {
		a := NewWithGenerator(keyed(), &fakeGenerator{resp: &genai.GenerateContentResponse{}})

		_, err := a.GenerateResponse(ctx, "x", "")
		assert.ErrorIs(t, err, ai.ErrProviderError)
	})

	t.Run("safety block", func(t *testing.T) {
		resp := textResponse("")
		resp.Candidates[0].FinishReason = genai.FinishReasonSafety
		a := NewWithGenerator(keyed(), &fakeGenerator{resp: resp})

		_, err := a.GenerateResponse(ctx, "x", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "safety")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		a := NewWithGenerator(keyed(), &fakeGenerator{err: context.Canceled})

		_, err := a.GenerateResponse(cctx, "x", "")
		assert.ErrorIs(t, err, ai.ErrConnectionFailed)
	})
}

func TestAdapter_TestConnection(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse("pong")}
	a := NewWithGenerator(keyed(), fake)

	assert.True(t, a.TestConnection(context.Background(), "gemini-2.5-flash"))
	assert.True(t, a.ValidateCredential(context.Background()))
	assert.Equal(t, []string{ai.CanaryPrompt, ai.CanaryPrompt}, fake.texts)

	noKey := NewWithGenerator(ai.DefaultSettings(), fake)
	assert.False(t, noKey.ValidateCredential(context.Background()))
}

func TestAdapter_ListModels(t *testing.T) {
	a, err := New(ai.DefaultSettings())
	require.NoError(t, err)

	models := a.ListModels()
	require.NotEmpty(t, models)
	assert.Equal(t, ai.ProviderGemini, a.Provider())

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.APIName)
	}
	assert.Contains(t, names, ai.DefaultSettings().Model(ai.ProviderGemini))
}
