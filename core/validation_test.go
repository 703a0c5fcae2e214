package core

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *OperationRequest
		wantErr error
	}{
		{
			name: "valid front matter request",
			req:  &OperationRequest{Type: OperationFrontMatter, TargetID: "a.md"},
		},
		{
			name: "valid batch request",
			req: &OperationRequest{
				Type:       OperationBatch,
				TargetID:   "a.md",
				Operations: []OperationType{OperationFrontMatter, OperationWikilinks},
			},
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "empty target",
			req:     &OperationRequest{Type: OperationOntology},
			wantErr: ErrEmptyTarget,
		},
		{
			name:    "unknown type",
			req:     &OperationRequest{Type: "summarize", TargetID: "a.md"},
			wantErr: ErrUnknownOperationType,
		},
		{
			name:    "batch without operations",
			req:     &OperationRequest{Type: OperationBatch, TargetID: "a.md"},
			wantErr: ErrEmptyBatch,
		},
		{
			name: "nested batch",
			req: &OperationRequest{
				Type:       OperationBatch,
				TargetID:   "a.md",
				Operations: []OperationType{OperationBatch},
			},
			wantErr: ErrNestedBatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}
