// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies a ServiceError.
type ErrorKind string

// ServiceError is the typed failure carrier shared by every component.
// Two ServiceErrors match under errors.Is when their Kinds are equal, so a
// bare kind sentinel (see NewKind) can be used as the comparison target.
type ServiceError struct {
	Source  string
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewKind returns a sentinel ServiceError carrying only a kind.
func NewKind(source string, kind ErrorKind) *ServiceError {
	return &ServiceError{Source: source, Kind: kind}
}

// NewError builds a ServiceError.
func NewError(source string, kind ErrorKind, message string, cause error) *ServiceError {
	return &ServiceError{Source: source, Kind: kind, Message: message, Cause: cause}
}

func (e *ServiceError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches any ServiceError of the same kind.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first ServiceError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

var (
	// ErrInvalidRequest indicates an OperationRequest failed validation.
	ErrInvalidRequest = errors.New("invalid operation request")

	// ErrEmptyTarget indicates the TargetID field is empty.
	ErrEmptyTarget = errors.New("target id cannot be empty")

	// ErrUnknownOperationType indicates an unsupported OperationType value.
	ErrUnknownOperationType = errors.New("unknown operation type")

	// ErrEmptyBatch indicates an OperationBatch request without sub-operations.
	ErrEmptyBatch = errors.New("batch request has no operations")

	// ErrNestedBatch indicates an OperationBatch request listing itself.
	ErrNestedBatch = errors.New("batch request cannot contain a batch operation")
)
