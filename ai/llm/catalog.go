package llm

import "github.com/poiesic/notegen/ai"

var (
	chat      = []ai.Capability{ai.CapabilityChat}
	chatJSON  = []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON}
	chatLarge = []ai.Capability{ai.CapabilityChat, ai.CapabilityJSON, ai.CapabilityLongInput}
)

// catalogs lists the models offered per provider. Catalogs are static: the
// registry never calls a provider to discover models.
var catalogs = map[ai.Provider][]ai.ModelDescriptor{
	ai.ProviderOpenAI: {
		{Name: "GPT-4o mini", APIName: "gpt-4o-mini", Capabilities: chatLarge},
		{Name: "GPT-4o", APIName: "gpt-4o", Capabilities: chatLarge},
		{Name: "GPT-4.1", APIName: "gpt-4.1", Capabilities: chatLarge},
		{Name: "GPT-4.1 mini", APIName: "gpt-4.1-mini", Capabilities: chatLarge},
	},
	ai.ProviderOpenRouter: {
		{Name: "GPT-4o mini (OpenRouter)", APIName: "openai/gpt-4o-mini", Capabilities: chatLarge},
		{Name: "Claude 3.5 Haiku (OpenRouter)", APIName: "anthropic/claude-3.5-haiku", Capabilities: chatLarge},
		{Name: "Llama 3.1 70B (OpenRouter)", APIName: "meta-llama/llama-3.1-70b-instruct", Capabilities: chatJSON},
		{Name: "Mistral Small (OpenRouter)", APIName: "mistralai/mistral-small", Capabilities: chatJSON},
	},
	ai.ProviderAnthropic: {
		{Name: "Claude 3.5 Haiku", APIName: "claude-3-5-haiku-latest", Capabilities: chatLarge},
		{Name: "Claude 3.7 Sonnet", APIName: "claude-3-7-sonnet-latest", Capabilities: chatLarge},
		{Name: "Claude Sonnet 4", APIName: "claude-sonnet-4-0", Capabilities: chatLarge},
	},
	ai.ProviderOllama: {
		{Name: "Qwen 2.5 3B", APIName: "qwen2.5:3b", Capabilities: chatJSON},
		{Name: "Llama 3.2 3B", APIName: "llama3.2", Capabilities: chatJSON},
		{Name: "Mistral 7B", APIName: "mistral", Capabilities: chat},
		{Name: "Gemma 2 9B", APIName: "gemma2:9b", Capabilities: chat},
	},
}

// Catalog returns a copy of the static model catalog for p.
func Catalog(p ai.Provider) []ai.ModelDescriptor {
	models := catalogs[p]
	out := make([]ai.ModelDescriptor, len(models))
	copy(out, models)
	return out
}

// Supports reports whether p is served by this package.
func Supports(p ai.Provider) bool {
	_, ok := catalogs[p]
	return ok
}
