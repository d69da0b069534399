package provider

import "modelboot-go/internal/backend"

// Static fallback model tables, used when live discovery is unavailable.
// Deliberately conservative: only models known to exist for each backend
// family, refreshed with releases rather than at runtime.
var staticModelTables = map[backend.Identity][]ModelInfo{
	backend.RemoteManaged: {
		{ID: "managed-large", DisplayName: "Managed Large", ContextWindow: 200000},
		{ID: "managed-fast", DisplayName: "Managed Fast", ContextWindow: 128000},
	},
	backend.VendorOpenAI: {
		{ID: "gpt-4o", DisplayName: "GPT-4o", ContextWindow: 128000},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", ContextWindow: 128000},
	},
	backend.VendorAnthropic: {
		{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", ContextWindow: 200000},
		{ID: "claude-haiku-3-5-20241022", DisplayName: "Claude Haiku 3.5", ContextWindow: 200000},
	},
	backend.LocalOllama: {
		{ID: "llama3.1:8b", DisplayName: "Llama 3.1 8B", ContextWindow: 131072},
		{ID: "qwen2.5:7b", DisplayName: "Qwen 2.5 7B", ContextWindow: 32768},
	},
	backend.LocalOpenAICompatible: {
		{ID: "default", DisplayName: "Server default model"},
	},
	backend.PrivateInference: {
		{ID: "default", DisplayName: "Deployment default model"},
	},
}

// StaticModels returns the fallback model table for an identity. Never
// empty for a valid identity.
func StaticModels(identity backend.Identity) []ModelInfo {
	models := staticModelTables[identity]
	out := make([]ModelInfo, len(models))
	copy(out, models)
	return out
}
