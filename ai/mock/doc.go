// Package mock provides a test double for ai.Adapter.
//
// The mock lets tests run without network access and makes provider
// behavior deterministic.
//
// # Usage in Tests
//
//	// Default behavior: echoes a canned response
//	adapter := mock.NewMockAdapter(ai.ProviderOpenAI)
//	resp, err := adapter.GenerateResponse(ctx, "prompt", "")
//
//	// Custom behavior injection
//	adapter.GenerateFunc = func(ctx context.Context, prompt, model string) (*ai.Response, error) {
//	    return nil, ai.ConnectionFailed(ai.ProviderOpenAI, io.EOF)
//	}
//
//	// Check call counts and captured prompts
//	count := adapter.CallCount()
//	last := adapter.LastPrompt()
//
// # Default Behavior
//
//   - GenerateResponse returns DefaultResponse, or ai.ErrCredentialMissing when
//     Credential is false
//   - ValidateCredential returns Credential
//   - TestConnection succeeds when GenerateResponse does
//   - ListModels returns a single model named after the provider
package mock
