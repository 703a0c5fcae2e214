package registry

import (
	"fmt"
	"strings"

	"github.com/poiesic/notegen/core"
)

const errorSource = "registry"

var (
	// ErrAlreadyRegistered indicates a service ID was registered twice.
	ErrAlreadyRegistered = core.NewKind(errorSource, "already_registered")

	// ErrMissingDependency indicates a service depends on an unregistered ID.
	ErrMissingDependency = core.NewKind(errorSource, "missing_dependency")

	// ErrCircularDependency indicates the dependency graph is not acyclic.
	ErrCircularDependency = core.NewKind(errorSource, "circular_dependency")

	// ErrNotInitialized indicates the registry has not completed initialization.
	ErrNotInitialized = core.NewKind(errorSource, "not_initialized")

	// ErrNotFound indicates no service is registered under the requested ID.
	ErrNotFound = core.NewKind(errorSource, "not_found")

	// ErrTypeMismatch indicates a service does not have the requested type.
	ErrTypeMismatch = core.NewKind(errorSource, "type_mismatch")

	// ErrInitializationFailed indicates a service failed to initialize.
	ErrInitializationFailed = core.NewKind(errorSource, "initialization_failed")

	// ErrRegistrationClosed indicates Register was called after initialization began.
	ErrRegistrationClosed = core.NewKind(errorSource, "registration_closed")
)

func alreadyRegistered(id string) error {
	return core.NewError(errorSource, ErrAlreadyRegistered.Kind, id, nil)
}

func missingDependency(missing map[string][]string, order []string) error {
	var parts []string
	for _, id := range order {
		if deps, ok := missing[id]; ok {
			parts = append(parts, fmt.Sprintf("%s needs [%s]", id, strings.Join(deps, ", ")))
		}
	}
	return core.NewError(errorSource, ErrMissingDependency.Kind, strings.Join(parts, "; "), nil)
}

func circularDependency(ids []string) error {
	return core.NewError(errorSource, ErrCircularDependency.Kind, "cycle among ["+strings.Join(ids, ", ")+"]", nil)
}

func notFound(id string, known []string) error {
	return core.NewError(errorSource, ErrNotFound.Kind,
		fmt.Sprintf("%q (registered: %s)", id, strings.Join(known, ", ")), nil)
}

func initializationFailed(id string, cause error) error {
	return core.NewError(errorSource, ErrInitializationFailed.Kind, id, cause)
}
