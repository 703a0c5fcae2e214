package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTestVault(t *testing.T, opts ...Option) (*Vault, string) {
	t.Helper()
	root := t.TempDir()
	v, err := Open(root, opts...)
	require.NoError(t, err)
	require.NoError(t, v.Initialize(context.Background()))
	return v, root
}

func TestOpen(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Open(file)
	assert.Error(t, err)
}

func TestListItems(t *testing.T) {
	v, root := newTestVault(t)
	writeFile(t, root, "b.md", "b")
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "topics/Go Channels.md", "c")
	writeFile(t, root, "topics/image.png", "png")
	writeFile(t, root, ".obsidian/workspace.md", "hidden")
	writeFile(t, root, ".draft.md", "hidden")

	items, err := v.ListItems(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
		assert.False(t, item.ModifiedAt.IsZero())
	}
	assert.Equal(t, []string{"a.md", "b.md", "topics/Go Channels.md"}, ids)

	titles, err := v.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "Go Channels"}, titles)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.ListItems(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadWriteItem(t *testing.T) {
	v, root := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.WriteItem(ctx, "deep/nested/note.md", "hello"))
	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "note.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	content, err := v.ReadItem(ctx, "deep/nested/note.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	require.NoError(t, v.WriteItem(ctx, "deep/nested/note.md", "replaced"))
	content, _ = v.ReadItem(ctx, "deep/nested/note.md")
	assert.Equal(t, "replaced", content)

	entries, err := os.ReadDir(filepath.Join(root, "deep", "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	_, err = v.ReadItem(ctx, "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRejectsEscapes(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	for _, id := range []string{"", "../outside.md", "a/../../outside.md", "/etc/passwd.md", "note.txt", "."} {
		_, err := v.ReadItem(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidPath, id)
		assert.ErrorIs(t, v.WriteItem(ctx, id, "x"), ErrInvalidPath, id)
	}
}

func TestApply(t *testing.T) {
	v, root := newTestVault(t, WithBloomDir("generated"))
	ctx := context.Background()
	writeFile(t, root, "Channels.md", "---\ntitle: Channels\ntags: [go]\n---\nChannels connect goroutines.\n")
	writeFile(t, root, "generated/Existing.md", "keep me")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "Channels.md"), old, old))

	result := &operation.Result{Outputs: []*operation.Output{
		{Type: core.OperationFrontMatter, FrontMatter: map[string]any{"title": "Other", "summary": "Pipes.", "tags": []any{"concurrency"}}},
		{Type: core.OperationWikilinks, Links: []string{"Goroutines", "Select"}},
		{Type: core.OperationOntology, Ontology: &operation.Ontology{Concepts: []operation.Concept{{Name: "channel"}, {Name: "goroutine"}}}},
		{Type: core.OperationKnowledgeBloom, Notes: []operation.Note{{Title: "New: Topic", Body: "Fresh.\n"}, {Title: "Existing", Body: "overwrite?"}}},
	}}

	written, err := v.Apply(ctx, core.ItemRef{ID: "Channels.md", ModifiedAt: old}, result)
	require.NoError(t, err)
	assert.True(t, written.After(old))

	ref, err := v.Stat(ctx, "Channels.md")
	require.NoError(t, err)
	assert.Equal(t, ref.ModifiedAt, written)

	content, err := v.ReadItem(ctx, "Channels.md")
	require.NoError(t, err)
	doc, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "Channels", doc.FrontMatter["title"])
	assert.Equal(t, "Pipes.", doc.FrontMatter["summary"])
	assert.Equal(t, []any{"go", "concurrency"}, doc.FrontMatter["tags"])
	assert.Equal(t, []any{"channel", "goroutine"}, doc.FrontMatter["concepts"])
	assert.Contains(t, doc.Body, "## Related\n\n- [[Goroutines]]\n- [[Select]]\n")

	bloom, err := v.ReadItem(ctx, "generated/New- Topic.md")
	require.NoError(t, err)
	assert.Equal(t, "# New: Topic\n\nFresh.\n", bloom)
	existing, _ := v.ReadItem(ctx, "generated/Existing.md")
	assert.Equal(t, "keep me", existing, "existing notes are never overwritten")
}

func TestApply_NoChanges(t *testing.T) {
	v, root := newTestVault(t)
	writeFile(t, root, "n.md", "---\ntitle: N\n---\nSee [[A]].\n")

	written, err := v.Apply(context.Background(), core.ItemRef{ID: "n.md"}, &operation.Result{Outputs: []*operation.Output{
		{Type: core.OperationFrontMatter, FrontMatter: map[string]any{"title": "Else"}},
		{Type: core.OperationWikilinks, Links: []string{"a"}},
	}})
	require.NoError(t, err)
	assert.True(t, written.IsZero(), "untouched note reports zero time")

	written, err = v.Apply(context.Background(), core.ItemRef{ID: "n.md"}, nil)
	require.NoError(t, err)
	assert.True(t, written.IsZero())

	_, err = v.Apply(context.Background(), core.ItemRef{ID: "gone.md"}, &operation.Result{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "A-B.md", FileName("A/B"))
	assert.Equal(t, "What.md", FileName("What?"))
	assert.Equal(t, "Untitled.md", FileName("  "))
	assert.Equal(t, "Go Channels", Title("topics/Go Channels.md"))
}
