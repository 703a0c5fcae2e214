package core

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}

	assert.NotEqual(t, IDFromContent("a"), IDFromContent("b"))
}

func TestOperationRequestKey(t *testing.T) {
	a := OperationRequest{Type: OperationFrontMatter, TargetID: "notes/a.md"}
	b := OperationRequest{Type: OperationFrontMatter, TargetID: "notes/a.md", ModelName: "other"}
	c := OperationRequest{Type: OperationWikilinks, TargetID: "notes/a.md"}

	assert.Equal(t, a.Key(), b.Key(), "key ignores everything but type and target")
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestOperationRequestClone(t *testing.T) {
	orig := OperationRequest{
		Type:       OperationBatch,
		TargetID:   "a",
		Payload:    map[string]string{PayloadContent: "body"},
		Operations: []OperationType{OperationFrontMatter},
	}
	clone := orig.Clone()
	clone.Payload[PayloadContent] = "changed"
	clone.Operations[0] = OperationOntology

	assert.Equal(t, "body", orig.Payload[PayloadContent])
	assert.Equal(t, OperationFrontMatter, orig.Operations[0])
}

func TestOperationState(t *testing.T) {
	assert.False(t, OperationQueued.Terminal())
	assert.False(t, OperationRunning.Terminal())
	assert.True(t, OperationSucceeded.Terminal())
	assert.True(t, OperationFailed.Terminal())
	assert.Equal(t, "running", OperationRunning.String())
}

func TestServiceErrorIs(t *testing.T) {
	notFound := NewKind("registry", "not_found")
	err := NewError("registry", "not_found", "service \"x\"", nil)
	wrapped := errors.Wrap(err, "lookup")

	assert.True(t, errors.Is(wrapped, notFound))
	assert.False(t, errors.Is(wrapped, NewKind("registry", "already_registered")))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorKind("not_found"), kind)
}

func TestServiceErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError("ledger", "persistence_failed", "save snapshot", cause)

	assert.Equal(t, "ledger: persistence_failed: save snapshot: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}
