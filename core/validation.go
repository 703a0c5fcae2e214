package core

import (
	"github.com/cockroachdb/errors"
)

// ValidateRequest checks that an OperationRequest is well formed.
// Returned errors match both ErrInvalidRequest and the specific cause.
func ValidateRequest(req *OperationRequest) error {
	if req == nil {
		return errors.Wrap(ErrInvalidRequest, "request is nil")
	}

	if req.TargetID == "" {
		return invalid(ErrEmptyTarget)
	}

	if err := ValidateOperationType(req.Type); err != nil {
		return invalid(err)
	}

	if req.Type == OperationBatch {
		if len(req.Operations) == 0 {
			return invalid(ErrEmptyBatch)
		}
		for _, op := range req.Operations {
			if op == OperationBatch {
				return invalid(ErrNestedBatch)
			}
			if err := ValidateOperationType(op); err != nil {
				return invalid(err)
			}
		}
	}

	return nil
}

// ValidateOperationType checks that t is a known OperationType.
func ValidateOperationType(t OperationType) error {
	if t == OperationBatch {
		return nil
	}
	for _, known := range GeneratorTypes {
		if t == known {
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownOperationType, "value %q", t)
}

func invalid(cause error) error {
	return errors.Mark(errors.Wrap(cause, "invalid operation request"), ErrInvalidRequest)
}
