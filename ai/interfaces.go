package ai

import (
	"context"
	"time"
)

// CanaryPrompt is sent by TestConnection implementations. Any non-empty
// response counts as a working connection.
const CanaryPrompt = "Reply with the single word: pong"

// Adapter normalizes one AI provider behind a common capability set.
// Implementations must be thread-safe for concurrent use.
type Adapter interface {
	// Provider returns the provider this adapter talks to.
	Provider() Provider

	// GenerateResponse sends prompt to modelName and returns the generated text.
	// An empty modelName selects the provider's configured default model.
	// Returns an error wrapping ErrCredentialMissing, ErrConnectionFailed or
	// ErrProviderError on failure.
	GenerateResponse(ctx context.Context, prompt, modelName string) (*Response, error)

	// ValidateCredential reports whether the configured credential is usable.
	// Never returns an error: network and auth failures are reported as false.
	ValidateCredential(ctx context.Context) bool

	// TestConnection sends CanaryPrompt to modelName and reports whether a
	// non-empty response came back.
	TestConnection(ctx context.Context, modelName string) bool

	// ListModels returns the adapter's model catalog.
	ListModels() []ModelDescriptor
}

// Response is the result of one GenerateResponse call.
type Response struct {
	Text     string
	Model    string
	Duration time.Duration
}

// Capability describes what a model is good for.
type Capability string

const (
	CapabilityChat      Capability = "chat"
	CapabilityJSON      Capability = "json"
	CapabilityLongInput Capability = "long_input"
)

// ModelDescriptor describes one model a provider offers.
type ModelDescriptor struct {
	// Name is the human readable model name.
	Name string
	// APIName is the identifier sent to the provider.
	APIName string
	// Capabilities lists the model's capabilities.
	Capabilities []Capability
}

// AdapterDescriptor is derived state describing a configured provider.
// It is recomputed whenever settings change and never persisted.
type AdapterDescriptor struct {
	Provider          Provider
	AvailableModels   []ModelDescriptor
	CredentialPresent bool
}
