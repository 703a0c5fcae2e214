package operation

import (
	"context"
	"strings"

	"github.com/poiesic/notegen/core"
	"gopkg.in/yaml.v3"
)

// FrontMatterGenerator produces a YAML front matter mapping.
type FrontMatterGenerator struct{}

func NewFrontMatterGenerator() *FrontMatterGenerator {
	return &FrontMatterGenerator{}
}

func (g *FrontMatterGenerator) Type() core.OperationType {
	return core.OperationFrontMatter
}

func (g *FrontMatterGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	content, err := in.content()
	if err != nil {
		return nil, err
	}
	prompt, err := render(frontMatterPrompt, promptData{
		Title:       in.title(),
		Content:     content,
		UserContext: in.Request.UserContext,
	})
	if err != nil {
		return nil, generationFailed("front matter prompt", err)
	}

	resp, err := in.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	fields, err := parseFrontMatter(resp.Text)
	if err != nil {
		return nil, err
	}
	return &Output{Type: g.Type(), Model: resp.Model, Raw: resp.Text, FrontMatter: fields}, nil
}

// parseFrontMatter decodes a YAML mapping, tolerating code fences and ---
// delimiters around it. A comma separated tags string becomes a list.
func parseFrontMatter(text string) (map[string]any, error) {
	text = cleanResponse(text)
	text = strings.TrimPrefix(text, "---")
	if i := strings.LastIndex(text, "\n---"); i >= 0 {
		text = text[:i]
	}

	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(text), &fields); err != nil {
		return nil, generationFailed("front matter is not valid YAML", err)
	}
	if len(fields) == 0 {
		return nil, generationFailed("front matter has no fields", nil)
	}

	if tags, ok := fields["tags"].(string); ok {
		var list []any
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				list = append(list, tag)
			}
		}
		fields["tags"] = list
	}
	return fields, nil
}
