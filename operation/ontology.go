package operation

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/poiesic/notegen/core"
)

// Ontology is the concept graph extracted from one note.
type Ontology struct {
	Concepts  []Concept  `json:"concepts"`
	Relations []Relation `json:"relations"`
}

type Concept struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// OntologyGenerator extracts concepts and relations as JSON.
type OntologyGenerator struct{}

func NewOntologyGenerator() *OntologyGenerator {
	return &OntologyGenerator{}
}

func (g *OntologyGenerator) Type() core.OperationType {
	return core.OperationOntology
}

func (g *OntologyGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	content, err := in.content()
	if err != nil {
		return nil, err
	}
	prompt, err := render(ontologyPrompt, promptData{Content: content, UserContext: in.Request.UserContext})
	if err != nil {
		return nil, generationFailed("ontology prompt", err)
	}

	resp, err := in.ask(ctx, prompt)
	if err != nil {
		return nil, err
	}
	onto, err := parseOntology(resp.Text)
	if err != nil {
		return nil, err
	}
	return &Output{Type: g.Type(), Model: resp.Model, Raw: resp.Text, Ontology: onto}, nil
}

func parseOntology(text string) (*Ontology, error) {
	raw := repairJSON(extractJSON(text))

	var onto Ontology
	if err := json.Unmarshal([]byte(raw), &onto); err != nil {
		return nil, generationFailed("ontology is not valid JSON", err)
	}

	known := make(map[string]struct{}, len(onto.Concepts))
	concepts := make([]Concept, 0, len(onto.Concepts))
	for _, c := range onto.Concepts {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Name == "" {
			continue
		}
		if _, dup := known[c.Name]; dup {
			continue
		}
		known[c.Name] = struct{}{}
		c.Type = strings.ReplaceAll(strings.TrimSpace(c.Type), " ", "_")
		c.Importance = min(max(c.Importance, 1), 10)
		concepts = append(concepts, c)
	}
	slices.SortStableFunc(concepts, func(a, b Concept) int { return b.Importance - a.Importance })

	relations := make([]Relation, 0, len(onto.Relations))
	for _, r := range onto.Relations {
		r.From = strings.ToLower(strings.TrimSpace(r.From))
		r.To = strings.ToLower(strings.TrimSpace(r.To))
		_, fromOK := known[r.From]
		_, toOK := known[r.To]
		if fromOK && toOK && r.From != r.To {
			relations = append(relations, r)
		}
	}

	return &Ontology{Concepts: concepts, Relations: relations}, nil
}
