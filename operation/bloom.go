package operation

import (
	"context"
	"strings"

	"github.com/poiesic/notegen/core"
)

// DefaultMaxBloomNotes caps how many notes one knowledge bloom run writes.
const DefaultMaxBloomNotes = 5

// Note is a generated standalone note.
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// KnowledgeBloomGenerator writes one new note for each link in the document
// that does not name an existing note. Existing notes are taken from the
// candidate list; without one every link counts as missing.
type KnowledgeBloomGenerator struct {
	maxNotes int
}

func NewKnowledgeBloomGenerator(maxNotes int) *KnowledgeBloomGenerator {
	if maxNotes < 1 {
		maxNotes = DefaultMaxBloomNotes
	}
	return &KnowledgeBloomGenerator{maxNotes: maxNotes}
}

func (g *KnowledgeBloomGenerator) Type() core.OperationType {
	return core.OperationKnowledgeBloom
}

func (g *KnowledgeBloomGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	content, err := in.content()
	if err != nil {
		return nil, err
	}

	existing, _ := in.candidates()
	missing := missingLinks(ParseWikilinks(content), existing, in.title())
	if len(missing) > g.maxNotes {
		missing = missing[:g.maxNotes]
	}

	out := &Output{Type: g.Type(), Notes: []Note{}}
	for _, link := range missing {
		prompt, err := render(bloomPrompt, promptData{
			Title:       in.title(),
			Content:     content,
			UserContext: in.Request.UserContext,
			Link:        link,
		})
		if err != nil {
			return nil, generationFailed("knowledge bloom prompt", err)
		}
		resp, err := in.ask(ctx, prompt)
		if err != nil {
			return nil, err
		}
		out.Model = resp.Model
		out.Notes = append(out.Notes, Note{Title: link, Body: cleanResponse(resp.Text)})
	}
	return out, nil
}

func missingLinks(links, existing []string, title string) []string {
	have := make(map[string]struct{}, len(existing)+1)
	for _, e := range existing {
		have[strings.ToLower(e)] = struct{}{}
	}
	if title != "" {
		have[strings.ToLower(title)] = struct{}{}
	}
	var missing []string
	for _, l := range links {
		if _, ok := have[strings.ToLower(l)]; !ok {
			missing = append(missing, l)
		}
	}
	return missing
}
