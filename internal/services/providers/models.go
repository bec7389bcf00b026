package providers

import (
	"github.com/fluxtranslate/flux-relay/internal/models"
)

// modelOptions is the supported model catalog per provider, mirrored by
// the options UI. First entry is not necessarily the default.
var modelOptions = map[models.ProviderID][]string{
	models.ProviderOpenAI:    {"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano"},
	models.ProviderAnthropic: {"claude-sonnet-4-20250514", "claude-opus-4-1-20250805"},
	models.ProviderGemini:    {"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
	models.ProviderGroq: {
		"llama-3.1-8b-instant",
		"llama-3.3-70b-versatile",
		"openai/gpt-oss-120b",
		"openai/gpt-oss-20b",
	},
}

// defaultModel is the model used when a run does not name one.
var defaultModel = map[models.ProviderID]string{
	models.ProviderOpenAI:    "gpt-4.1-mini",
	models.ProviderAnthropic: "claude-sonnet-4-20250514",
	models.ProviderGemini:    "gemini-2.5-flash-lite",
	models.ProviderGroq:      "llama-3.3-70b-versatile",
}

// ModelOptions returns the model catalog for a provider.
func ModelOptions(id models.ProviderID) []string {
	opts := modelOptions[id]
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

// DefaultModel returns the default model for a provider.
func DefaultModel(id models.ProviderID) string {
	return defaultModel[id]
}

// CoerceModel returns model when it is in the provider's catalog, and
// the provider default otherwise. Keeps a stored model valid after the
// user switches providers.
func CoerceModel(id models.ProviderID, model string) string {
	for _, opt := range modelOptions[id] {
		if opt == model {
			return model
		}
	}
	return defaultModel[id]
}
