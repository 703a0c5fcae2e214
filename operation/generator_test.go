package operation

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/ai/mock"
	"github.com/poiesic/notegen/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyWith(text string) func(context.Context, string, string) (*ai.Response, error) {
	return func(context.Context, string, string) (*ai.Response, error) {
		return &ai.Response{Text: text, Model: "test-model"}, nil
	}
}

func inputFor(adapter ai.Adapter, t core.OperationType, payload map[string]string) Input {
	return Input{
		Request: core.OperationRequest{Type: t, TargetID: "note.md", Payload: payload},
		Adapter: adapter,
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "  hello ", expected: "hello"},
		{name: "fenced with language", input: "```yaml\ntitle: x\n```", expected: "title: x"},
		{name: "fenced without language", input: "```\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "fenced json on first line", input: "```{\"a\":1}```", expected: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanResponse(tt.input))
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "valid json untouched", input: `{"name":"a","type":"b"}`, expected: `{"name":"a","type":"b"}`},
		{name: "missing opening quote", input: `{"name":"a", type":"b"}`, expected: `{"name":"a", "type":"b"}`},
		{name: "missing quote after brace", input: `{ name":"a"}`, expected: `{ "name":"a"}`},
		{name: "bare words preserved", input: `[1, true, null]`, expected: `[1, true, null]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, repairJSON(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("Sure! Here it is:\n{\"a\":1}\nHope that helps."))
	assert.Equal(t, `[1,2]`, extractJSON("```json\n[1,2]\n```"))
	assert.Equal(t, "no json", extractJSON("no json"))
}

func TestParseFrontMatter(t *testing.T) {
	fields, err := parseFrontMatter("```yaml\n---\ntitle: Go Channels\ntags: go, concurrency\n---\n```")
	require.NoError(t, err)
	assert.Equal(t, "Go Channels", fields["title"])
	assert.Equal(t, []any{"go", "concurrency"}, fields["tags"])

	fields, err = parseFrontMatter("title: x\ntags:\n  - a\n  - b\n")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, fields["tags"])

	_, err = parseFrontMatter("title: [unclosed")
	assert.ErrorIs(t, err, ErrGenerationFailed)

	_, err = parseFrontMatter("")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestParseWikilinks(t *testing.T) {
	text := "See [[Go Channels]] and [[Goroutines|green threads]], [[Go Channels#select]] again, [[ ]] and [[go channels]]."
	assert.Equal(t, []string{"Go Channels", "Goroutines"}, ParseWikilinks(text))
	assert.Empty(t, ParseWikilinks("no links here"))
}

func TestFilterCandidates(t *testing.T) {
	links := []string{"go channels", "Unknown", "Goroutines"}
	candidates := []string{"Go Channels", "Goroutines", "Mutex"}
	assert.Equal(t, []string{"Go Channels", "Goroutines"}, filterCandidates(links, candidates))
}

func TestParseOntology(t *testing.T) {
	raw := "Here you go:\n```json\n{\"concepts\":[" +
		"{\"name\":\"Channel\",\"type\":\"data structure\",\"importance\":14}," +
		"{ name\":\"goroutine\",\"type\":\"runtime\",\"importance\":9}," +
		"{\"name\":\"channel\",\"type\":\"dup\",\"importance\":1}," +
		"{\"name\":\"  \",\"type\":\"x\",\"importance\":3}," +
		"{\"name\":\"select\",\"type\":\"statement\",\"importance\":0}]," +
		"\"relations\":[" +
		"{\"from\":\"goroutine\",\"to\":\"channel\",\"type\":\"communicates_via\"}," +
		"{\"from\":\"goroutine\",\"to\":\"mutex\",\"type\":\"uses\"}," +
		"{\"from\":\"select\",\"to\":\"select\",\"type\":\"self\"}]}\n```"

	onto, err := parseOntology(raw)
	require.NoError(t, err)
	require.Len(t, onto.Concepts, 3)
	assert.Equal(t, Concept{Name: "channel", Type: "data_structure", Importance: 10}, onto.Concepts[0])
	assert.Equal(t, "goroutine", onto.Concepts[1].Name)
	assert.Equal(t, 1, onto.Concepts[2].Importance)
	require.Len(t, onto.Relations, 1, "relations to unknown concepts and self loops are dropped")
	assert.Equal(t, "communicates_via", onto.Relations[0].Type)

	_, err = parseOntology("not json at all")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerators_RequireContent(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	for _, g := range DefaultGenerators() {
		t.Run(string(g.Type()), func(t *testing.T) {
			_, err := g.Generate(context.Background(), inputFor(adapter, g.Type(), map[string]string{core.PayloadContent: "   "}))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, adapter.CallCount())
}

func TestFrontMatterGenerator(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	adapter.GenerateFunc = replyWith("title: Channels\nsummary: How channels work.\ntags: [go]")

	out, err := NewFrontMatterGenerator().Generate(context.Background(), inputFor(adapter, core.OperationFrontMatter, map[string]string{
		core.PayloadContent: "Channels connect goroutines.",
		core.PayloadTitle:   "channels",
	}))
	require.NoError(t, err)
	assert.Equal(t, core.OperationFrontMatter, out.Type)
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, "Channels", out.FrontMatter["title"])
	assert.Contains(t, adapter.LastPrompt(), "Channels connect goroutines.")
	assert.Contains(t, adapter.LastPrompt(), "Current title: channels")
}

func TestWikilinkGenerator(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	adapter.GenerateFunc = replyWith("[[goroutines]]\n[[Made Up]]\n[[Channels]]\n[[Select]]")

	out, err := NewWikilinkGenerator().Generate(context.Background(), inputFor(adapter, core.OperationWikilinks, map[string]string{
		core.PayloadContent:    "Channels connect goroutines.",
		core.PayloadTitle:      "Channels",
		core.PayloadCandidates: "Goroutines\nSelect\nChannels\n",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Goroutines", "Select"}, out.Links)
	assert.Contains(t, adapter.LastPrompt(), "- Goroutines")
}

func TestWikilinkGenerator_Unrestricted(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	adapter.GenerateFunc = replyWith("[[Anything]]\n[[Else]]")

	out, err := NewWikilinkGenerator().Generate(context.Background(), inputFor(adapter, core.OperationWikilinks, map[string]string{
		core.PayloadContent: "body",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Anything", "Else"}, out.Links)
}

func TestGenerator_EmptyResponse(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	adapter.GenerateFunc = replyWith("   ")

	_, err := NewOntologyGenerator().Generate(context.Background(), inputFor(adapter, core.OperationOntology, map[string]string{
		core.PayloadContent: "body",
	}))
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestKnowledgeBloomGenerator(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
	adapter.GenerateFunc = func(ctx context.Context, prompt, model string) (*ai.Response, error) {
		title := prompt[strings.Index(prompt, `"`)+1:]
		title = title[:strings.Index(title, `"`)]
		return &ai.Response{Text: "```markdown\nAbout " + title + "\n```", Model: "m"}, nil
	}

	out, err := NewKnowledgeBloomGenerator(2).Generate(context.Background(), inputFor(adapter, core.OperationKnowledgeBloom, map[string]string{
		core.PayloadContent:    "Links: [[Existing]] [[New One]] [[Self]] [[New Two]] [[New Three]]",
		core.PayloadTitle:      "Self",
		core.PayloadCandidates: "existing",
	}))
	require.NoError(t, err)
	require.Len(t, out.Notes, 2, "capped at maxNotes")
	assert.Equal(t, Note{Title: "New One", Body: "About New One"}, out.Notes[0])
	assert.Equal(t, "New Two", out.Notes[1].Title)
	assert.Equal(t, 2, adapter.CallCount(), "one adapter call per missing link")
}

func TestKnowledgeBloomGenerator_NothingMissing(t *testing.T) {
	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)

	out, err := NewKnowledgeBloomGenerator(0).Generate(context.Background(), inputFor(adapter, core.OperationKnowledgeBloom, map[string]string{
		core.PayloadContent:    "Only [[Existing]]",
		core.PayloadCandidates: "Existing",
	}))
	require.NoError(t, err)
	assert.Empty(t, out.Notes)
	assert.Zero(t, adapter.CallCount())
}
