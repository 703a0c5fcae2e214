// Package gemini implements ai.Adapter for Google Gemini using the genai SDK.
//
//	adapter, err := gemini.New(settings)
//	resp, err := adapter.GenerateResponse(ctx, prompt, "gemini-2.0-flash")
//
// The client is created lazily on first use so building an adapter never
// touches the network.
package gemini
