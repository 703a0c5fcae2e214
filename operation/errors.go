package operation

import "github.com/poiesic/notegen/core"

const errorSource = "operation"

var (
	// ErrAdapterUnavailable indicates no usable adapter exists for the requested provider.
	ErrAdapterUnavailable = core.NewKind(errorSource, "adapter_unavailable")

	// ErrGenerationFailed indicates the adapter call failed or its output could not be used.
	ErrGenerationFailed = core.NewKind(errorSource, "generation_failed")

	// ErrInvalidInput indicates the request or its payload cannot be processed.
	ErrInvalidInput = core.NewKind(errorSource, "invalid_input")

	// ErrNoGenerator indicates no generator is registered for the operation type.
	ErrNoGenerator = core.NewKind(errorSource, "no_generator")
)

func adapterUnavailable(message string, cause error) error {
	return core.NewError(errorSource, ErrAdapterUnavailable.Kind, message, cause)
}

func generationFailed(message string, cause error) error {
	return core.NewError(errorSource, ErrGenerationFailed.Kind, message, cause)
}

func invalidInput(message string, cause error) error {
	return core.NewError(errorSource, ErrInvalidInput.Kind, message, cause)
}
