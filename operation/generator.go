package operation

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/core"
)

// maxContentRunes bounds how much of a document is sent in one prompt.
const maxContentRunes = 12000

// Input is what a generator works on.
type Input struct {
	Request core.OperationRequest
	Adapter ai.Adapter
}

// Output is the parsed result of one generator run. Only the field matching
// Type is populated.
type Output struct {
	Type  core.OperationType `json:"type"`
	Model string             `json:"model,omitempty"`
	Raw   string             `json:"raw,omitempty"`

	FrontMatter map[string]any `json:"frontMatter,omitempty"`
	Links       []string       `json:"links,omitempty"`
	Ontology    *Ontology      `json:"ontology,omitempty"`
	Notes       []Note         `json:"notes,omitempty"`
}

// Generator turns one document into one kind of metadata.
type Generator interface {
	Type() core.OperationType
	Generate(ctx context.Context, in Input) (*Output, error)
}

// DefaultGenerators returns one generator for each of core.GeneratorTypes.
func DefaultGenerators() []Generator {
	return []Generator{
		NewFrontMatterGenerator(),
		NewWikilinkGenerator(),
		NewOntologyGenerator(),
		NewKnowledgeBloomGenerator(DefaultMaxBloomNotes),
	}
}

func (in Input) content() (string, error) {
	content := strings.TrimSpace(in.Request.Payload[core.PayloadContent])
	if content == "" {
		return "", invalidInput("payload has no content", nil)
	}
	return truncate(content, maxContentRunes), nil
}

func (in Input) title() string {
	return strings.TrimSpace(in.Request.Payload[core.PayloadTitle])
}

// candidates returns the titles link generation may target and whether the
// caller supplied a candidate list at all.
func (in Input) candidates() ([]string, bool) {
	raw, ok := in.Request.Payload[core.PayloadCandidates]
	if !ok {
		return nil, false
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, true
}

// ask sends prompt through the adapter and rejects empty answers.
func (in Input) ask(ctx context.Context, prompt string) (*ai.Response, error) {
	resp, err := in.Adapter.GenerateResponse(ctx, prompt, in.Request.ModelName)
	if err != nil {
		return nil, generationFailed(string(in.Request.Type), err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, generationFailed(string(in.Request.Type)+": empty response", nil)
	}
	return resp, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
