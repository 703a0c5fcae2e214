package operation

import (
	"context"
	"regexp"
	"strings"

	"github.com/poiesic/notegen/core"
)

var wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|#]+)(?:#[^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)

// WikilinkGenerator suggests [[links]] to other notes. When the request
// carries a candidate list, suggestions are restricted to it.
type WikilinkGenerator struct{}

func NewWikilinkGenerator() *WikilinkGenerator {
	return &WikilinkGenerator{}
}

func (g *WikilinkGenerator) Type() core.OperationType {
	return core.OperationWikilinks
}

func (g *WikilinkGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	content, err := in.content()
	if err != nil {
		return nil, err
	}
	candidates, restricted := in.candidates()
	prompt, err := render(wikilinkPrompt, promptData{
		Title:       in.title(),
		Content:     content,
		UserContext: in.Request.UserContext,
		Candidates:  candidates,
	})
	if err != nil {
		return nil, generationFailed("wikilink prompt", err)
	}

	resp, err := in.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}

	links := ParseWikilinks(resp.Text)
	if restricted {
		links = filterCandidates(links, candidates)
	}
	links = dropTitle(links, in.title())
	return &Output{Type: g.Type(), Model: resp.Model, Raw: resp.Text, Links: links}, nil
}

// ParseWikilinks returns the distinct link targets in text in order of first
// appearance. Aliases and heading anchors are dropped.
func ParseWikilinks(text string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, m := range wikilinkPattern.FindAllStringSubmatch(text, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		key := strings.ToLower(target)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, target)
	}
	return links
}

// filterCandidates keeps links naming a candidate, spelled as the candidate is.
func filterCandidates(links, candidates []string) []string {
	known := make(map[string]string, len(candidates))
	for _, c := range candidates {
		known[strings.ToLower(c)] = c
	}
	out := make([]string, 0, len(links))
	for _, l := range links {
		if c, ok := known[strings.ToLower(l)]; ok {
			out = append(out, c)
		}
	}
	return out
}

func dropTitle(links []string, title string) []string {
	if title == "" {
		return links
	}
	out := links[:0]
	for _, l := range links {
		if !strings.EqualFold(l, title) {
			out = append(out, l)
		}
	}
	return out
}
