package ai

import "github.com/poiesic/notegen/core"

const errorSource = "adapter"

var (
	// ErrCredentialMissing indicates the provider requires an API key that is not configured.
	ErrCredentialMissing = core.NewKind(errorSource, "credential_missing")

	// ErrConnectionFailed indicates the provider could not be reached.
	ErrConnectionFailed = core.NewKind(errorSource, "connection_failed")

	// ErrProviderError indicates the provider answered with an error or an unusable response.
	ErrProviderError = core.NewKind(errorSource, "provider_error")

	// ErrUnknownProvider indicates no adapter is registered for the provider.
	ErrUnknownProvider = core.NewKind(errorSource, "unknown_provider")
)

// CredentialMissing builds an ErrCredentialMissing error for p.
func CredentialMissing(p Provider) error {
	return core.NewError(errorSource, ErrCredentialMissing.Kind, "no API key configured for "+string(p), nil)
}

// ConnectionFailed builds an ErrConnectionFailed error for p.
func ConnectionFailed(p Provider, cause error) error {
	return core.NewError(errorSource, ErrConnectionFailed.Kind, string(p), cause)
}

// ProviderError builds an ErrProviderError error for p.
func ProviderError(p Provider, message string, cause error) error {
	return core.NewError(errorSource, ErrProviderError.Kind, string(p)+": "+message, cause)
}
