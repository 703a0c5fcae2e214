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


// Package llm implements ai.Adapter on top of langchaingo chat models.
//
// One Adapter type serves every provider langchaingo speaks to:
//
//   - OpenAI and any OpenAI-compatible server (LocalAI, vLLM, llama.cpp)
//   - OpenRouter, through the OpenAI client with the OpenRouter base URL
//   - Anthropic
//   - Ollama
//
// # Usage
//
//	settings := ai.NewSettings(
//	    ai.WithProvider(ai.ProviderAnthropic),
//	    ai.WithAPIKey(ai.ProviderAnthropic, os.Getenv("ANTHROPIC_API_KEY")),
//	)
//	adapter, err := llm.New(ai.ProviderAnthropic, settings)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := adapter.GenerateResponse(ctx, "Summarize: ...", "")
//
// Use Factory to plug the package into an ai.Registry.
package llm
