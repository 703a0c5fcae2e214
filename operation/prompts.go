package operation

import (
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
)

type promptData struct {
	Title       string
	Content     string
	UserContext string
	Candidates  []string
	Link        string
}

var frontMatterPrompt = template.Must(template.New("front_matter").Parse(`Generate YAML front matter for the note below.

Output ONLY the YAML mapping, without --- delimiters, code fences or commentary.
Use these keys:
- title: a concise title
- summary: one or two sentences
- tags: a list of 3-7 lowercase tags, words joined with hyphens
- aliases: a list of alternative names, possibly empty
{{- if .UserContext}}

Additional instructions: {{.UserContext}}
{{- end}}
{{- if .Title}}

Current title: {{.Title}}
{{- end}}

Note:
{{.Content}}
`))

var wikilinkPrompt = template.Must(template.New("wikilinks").Parse(`Suggest wiki links for the note below.

Output one link per line in the form [[Title]] and nothing else.
Only suggest topics the note discusses.
{{- if .Candidates}}
Choose only from these existing notes:
{{- range .Candidates}}
- {{.}}
{{- end}}
{{- end}}
{{- if .UserContext}}

Additional instructions: {{.UserContext}}
{{- end}}

Note{{if .Title}} "{{.Title}}"{{end}}:
{{.Content}}
`))

var ontologyPrompt = template.Must(template.New("ontology").Parse(`Extract the key concepts of the note below and the relations between them.

Output ONLY valid JSON, starting with { and ending with }, in this shape:
{"concepts":[{"name":"...","type":"...","importance":1}],"relations":[{"from":"...","to":"...","type":"..."}]}

Rules:
- concept names are lowercase, 1-3 words, singular
- importance is an integer from 1 (peripheral) to 10 (central)
- relations only connect concepts listed in "concepts"
{{- if .UserContext}}
- {{.UserContext}}
{{- end}}

Note:
{{.Content}}
`))

var bloomPrompt = template.Must(template.New("knowledge_bloom").Parse(`Write a short standalone note titled "{{.Link}}".

The note is referenced from the note below. Explain the topic in a few
paragraphs of markdown without a top level heading.
{{- if .UserContext}}

Additional instructions: {{.UserContext}}
{{- end}}

Referencing note{{if .Title}} "{{.Title}}"{{end}}:
{{.Content}}
`))

func render(t *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "render %s prompt", t.Name())
	}
	return sb.String(), nil
}
