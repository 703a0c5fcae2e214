package vault

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/operation"
	"gopkg.in/yaml.v3"
)

const (
	delimiter      = "---"
	relatedHeading = "## Related"
)

// Document is a markdown note split into front matter and body.
type Document struct {
	FrontMatter map[string]any
	Body        string
}

// Parse splits content into front matter and body. Content without a
// leading --- block has empty front matter.
func Parse(content string) (*Document, error) {
	doc := &Document{FrontMatter: map[string]any{}, Body: content}
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, delimiter+"\n") {
		return doc, nil
	}
	rest := normalized[len(delimiter)+1:]

	var header, body string
	switch {
	case strings.HasPrefix(rest, delimiter+"\n"):
		body = rest[len(delimiter)+1:]
	case rest == delimiter:
	default:
		end := strings.Index(rest, "\n"+delimiter+"\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n"+delimiter) {
				return doc, nil
			}
			end = len(rest) - len(delimiter) - 1
			header = rest[:end]
		} else {
			header = rest[:end]
			body = rest[end+len(delimiter)+2:]
		}
	}

	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &doc.FrontMatter); err != nil {
			return nil, errors.Wrap(err, "parse front matter")
		}
		if doc.FrontMatter == nil {
			doc.FrontMatter = map[string]any{}
		}
	}
	doc.Body = body
	return doc, nil
}

// Render serializes the document. Empty front matter is omitted.
func (d *Document) Render() (string, error) {
	if len(d.FrontMatter) == 0 {
		return d.Body, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.FrontMatter); err != nil {
		return "", errors.Wrap(err, "render front matter")
	}
	if err := enc.Close(); err != nil {
		return "", errors.Wrap(err, "render front matter")
	}
	return delimiter + "\n" + buf.String() + delimiter + "\n" + d.Body, nil
}

// MergeFrontMatter adds generated fields to the document. Fields the note
// already sets are kept, except list fields such as tags, which take the
// union of both. It reports whether anything changed.
func (d *Document) MergeFrontMatter(generated map[string]any) bool {
	changed := false
	keys := make([]string, 0, len(generated))
	for k := range generated {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := generated[key]
		if isEmpty(value) {
			continue
		}
		current, ok := d.FrontMatter[key]
		if !ok || isEmpty(current) {
			d.FrontMatter[key] = value
			changed = true
			continue
		}
		have, haveList := current.([]any)
		add, addList := value.([]any)
		if haveList && addList {
			merged := unionList(have, add)
			if len(merged) != len(have) {
				d.FrontMatter[key] = merged
				changed = true
			}
		}
	}
	return changed
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func unionList(have, add []any) []any {
	seen := make(map[string]struct{}, len(have))
	out := slices.Clone(have)
	for _, v := range have {
		seen[strings.ToLower(fmt.Sprint(v))] = struct{}{}
	}
	for _, v := range add {
		key := strings.ToLower(fmt.Sprint(v))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// AddRelated appends links to the Related section, creating it at the end
// of the body if needed. Links already present anywhere in the body are
// skipped. It reports whether anything changed.
func (d *Document) AddRelated(links []string) bool {
	existing := make(map[string]struct{})
	for _, l := range operation.ParseWikilinks(d.Body) {
		existing[strings.ToLower(l)] = struct{}{}
	}
	var fresh []string
	for _, l := range links {
		key := strings.ToLower(strings.TrimSpace(l))
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}
		fresh = append(fresh, strings.TrimSpace(l))
	}
	if len(fresh) == 0 {
		return false
	}

	var lines strings.Builder
	for _, l := range fresh {
		lines.WriteString("- [[" + l + "]]\n")
	}

	start, end, ok := relatedSection(d.Body)
	if !ok {
		body := strings.TrimRight(d.Body, "\n")
		if body != "" {
			body += "\n\n"
		}
		d.Body = body + relatedHeading + "\n\n" + lines.String()
		return true
	}

	section := strings.TrimRight(d.Body[start:end], "\n") + "\n" + lines.String()
	rest := d.Body[end:]
	if rest != "" {
		section += "\n"
	}
	d.Body = d.Body[:start] + section + rest
	return true
}

// relatedSection locates the Related section: from its heading to the next
// heading of the same or higher level, or the end of the body.
func relatedSection(body string) (start, end int, ok bool) {
	offset := 0
	start = -1
	for _, line := range strings.SplitAfter(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if start < 0 {
			if strings.EqualFold(trimmed, relatedHeading) {
				start = offset
			}
		} else if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			return start, offset, true
		}
		offset += len(line)
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, len(body), true
}
