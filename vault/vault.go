package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/operation"
)

var (
	// ErrNotFound indicates the item does not exist in the vault.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidPath indicates an item ID that escapes the vault or is not a note.
	ErrInvalidPath = errors.New("invalid item path")
)

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger.With("component", "vault")
		}
	}
}

// WithBloomDir sets the folder, relative to the vault root, that receives
// knowledge bloom notes. Default is the vault root.
func WithBloomDir(dir string) Option {
	return func(v *Vault) { v.bloomDir = path.Clean(filepath.ToSlash(dir)) }
}

// WithConceptsField sets the front matter field that receives ontology
// concept names. An empty name disables it. Default is "concepts".
func WithConceptsField(name string) Option {
	return func(v *Vault) { v.conceptsField = name }
}

// Vault is a directory of markdown notes. Item IDs are slash separated
// paths relative to the root, including the .md extension.
type Vault struct {
	root          string
	bloomDir      string
	conceptsField string
	logger        *slog.Logger
}

// Open returns a vault rooted at dir, which must exist.
func Open(dir string, opts ...Option) (*Vault, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve vault root")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "open vault")
	}
	if !info.IsDir() {
		return nil, errors.Newf("open vault: %s is not a directory", root)
	}
	v := &Vault{
		root:          root,
		bloomDir:      ".",
		conceptsField: "concepts",
		logger:        slog.Default().With("component", "vault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

func (v *Vault) Initialize(ctx context.Context) error {
	_, err := os.Stat(v.root)
	return errors.Wrap(err, "vault root")
}

func (v *Vault) Destroy(ctx context.Context) error {
	return nil
}

// ListItems returns every note in the vault sorted by ID. Hidden files and
// directories are skipped.
func (v *Vault) ListItems(ctx context.Context) ([]core.ItemRef, error) {
	var items []core.ItemRef
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if p != v.root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isNote(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		items = append(items, core.ItemRef{ID: filepath.ToSlash(rel), ModifiedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list vault")
	}
	slices.SortFunc(items, func(a, b core.ItemRef) int { return strings.Compare(a.ID, b.ID) })
	return items, nil
}

// Titles returns the titles of every note, suitable as link candidates.
func (v *Vault) Titles(ctx context.Context) ([]string, error) {
	items, err := v.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, Title(item.ID))
	}
	return titles, nil
}

// Stat returns the item's reference with its current modification time.
func (v *Vault) Stat(ctx context.Context, id string) (core.ItemRef, error) {
	p, err := v.resolve(id)
	if err != nil {
		return core.ItemRef{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return core.ItemRef{}, notFound(id, err)
	}
	return core.ItemRef{ID: id, ModifiedAt: info.ModTime()}, nil
}

// ReadItem returns the content of a note.
func (v *Vault) ReadItem(ctx context.Context, id string) (string, error) {
	p, err := v.resolve(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", notFound(id, err)
	}
	return string(data), nil
}

// WriteItem replaces the content of a note, creating it and its parent
// directories if needed. The write goes through a temporary file so readers
// never see a partial note.
func (v *Vault) WriteItem(ctx context.Context, id, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := v.resolve(id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", id)
	}

	tmp, err := os.CreateTemp(dir, ".notegen-*")
	if err != nil {
		return errors.Wrapf(err, "write %s", id)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", id)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", id)
	}
	if info, err := os.Stat(p); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	} else {
		_ = os.Chmod(tmp.Name(), 0o644)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrapf(err, "write %s", id)
	}
	v.logger.Debug("note written", "item", id, "bytes", len(content))
	return nil
}

// Apply writes a successful operation result into the note: generated front
// matter and concepts are merged into its header, suggested links go to the
// Related section, and knowledge bloom notes become new files. It returns
// the note's new modification time, or the zero time if the note was left
// untouched.
func (v *Vault) Apply(ctx context.Context, item core.ItemRef, result *operation.Result) (time.Time, error) {
	if result == nil {
		return time.Time{}, nil
	}
	content, err := v.ReadItem(ctx, item.ID)
	if err != nil {
		return time.Time{}, err
	}
	doc, err := Parse(content)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "apply to %s", item.ID)
	}

	changed := false
	for _, out := range result.Outputs {
		switch out.Type {
		case core.OperationFrontMatter:
			changed = doc.MergeFrontMatter(out.FrontMatter) || changed
		case core.OperationWikilinks:
			changed = doc.AddRelated(out.Links) || changed
		case core.OperationOntology:
			if out.Ontology != nil && v.conceptsField != "" {
				names := make([]any, 0, len(out.Ontology.Concepts))
				for _, c := range out.Ontology.Concepts {
					names = append(names, c.Name)
				}
				changed = doc.MergeFrontMatter(map[string]any{v.conceptsField: names}) || changed
			}
		case core.OperationKnowledgeBloom:
			if err := v.writeBloom(ctx, out.Notes); err != nil {
				return time.Time{}, err
			}
		}
	}
	if !changed {
		return time.Time{}, nil
	}

	rendered, err := doc.Render()
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "apply to %s", item.ID)
	}
	if err := v.WriteItem(ctx, item.ID, rendered); err != nil {
		return time.Time{}, err
	}
	ref, err := v.Stat(ctx, item.ID)
	if err != nil {
		return time.Time{}, err
	}
	v.logger.Info("result applied", "item", item.ID, "operations", result.Kinds())
	return ref.ModifiedAt, nil
}

// writeBloom creates one note per generated note. Existing notes are never
// overwritten.
func (v *Vault) writeBloom(ctx context.Context, notes []operation.Note) error {
	for _, note := range notes {
		id := path.Join(v.bloomDir, FileName(note.Title))
		if _, err := v.Stat(ctx, id); err == nil {
			v.logger.Debug("bloom note exists, skipping", "item", id)
			continue
		}
		if err := v.WriteItem(ctx, id, "# "+note.Title+"\n\n"+strings.TrimSpace(note.Body)+"\n"); err != nil {
			return err
		}
		v.logger.Info("bloom note created", "item", id)
	}
	return nil
}

// resolve maps an item ID to a file path inside the vault.
func (v *Vault) resolve(id string) (string, error) {
	clean := path.Clean(filepath.ToSlash(id))
	if id == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || !isNote(clean) {
		return "", errors.Wrapf(ErrInvalidPath, "%q", id)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

func notFound(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	return errors.Wrapf(err, "read %s", id)
}

func isNote(name string) bool {
	return strings.EqualFold(path.Ext(name), ".md")
}

// Title derives a note title from its ID: the base name without extension.
func Title(id string) string {
	base := path.Base(id)
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileName turns a note title into a safe file name.
func FileName(title string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "")
	name := strings.TrimSpace(replacer.Replace(title))
	if name == "" {
		name = "Untitled"
	}
	return name + ".md"
}
