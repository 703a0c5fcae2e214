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


// Package ai normalizes heterogeneous AI providers behind one Adapter
// interface and keeps the provider to adapter table.
//
// # Adapters
//
// An Adapter sends a prompt to one provider and returns text. Every adapter
// exposes the same capability set:
//
//   - GenerateResponse: prompt in, text out
//   - ValidateCredential: is the configured key usable
//   - TestConnection: does a canary prompt come back
//   - ListModels: the provider's static model catalog
//
// Failures are reported as core.ServiceError values with source "adapter"
// and one of the kinds ErrCredentialMissing, ErrConnectionFailed or
// ErrProviderError, so callers can branch with errors.Is.
//
// # Implementation Packages
//
//   - ai/llm: OpenAI, OpenRouter, Anthropic and Ollama through langchaingo
//   - ai/gemini: Google Gemini through the genai SDK
//   - ai/mock: Test double with injectable behavior
//
// # Registry
//
// Registry is built from Settings and one Factory per provider. The table is
// rebuilt wholesale whenever settings change:
//
//	reg, err := ai.NewRegistry(settings, factories)
//	if err != nil {
//	    return err
//	}
//	adapter, err := reg.Adapter(ai.ProviderAnthropic)
//	resp, err := adapter.GenerateResponse(ctx, prompt, "")
//
//	// later, after the user edits their keys
//	err = reg.Reload(newSettings)
//
// A provider whose credential is missing still gets an adapter. Its calls
// fail with ErrCredentialMissing instead of the lookup failing.
package ai
