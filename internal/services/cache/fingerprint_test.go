package cache

import (
	"testing"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

func TestFingerprintDeterministic(t *testing.T) {
	cfg := models.TranslationConfig{
		TargetLang: "ko",
		Tone:       "formal",
		Provider:   models.ProviderOpenAI,
		Model:      "gpt-4.1-mini",
	}

	a := Fingerprint("Hello world", cfg)
	b := Fingerprint("Hello world", cfg)
	if a != b {
		t.Errorf("same input produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}
}

func TestFingerprintVariesPerDimension(t *testing.T) {
	base := models.TranslationConfig{
		TargetLang: "ko",
		Tone:       "formal",
		Provider:   models.ProviderOpenAI,
		Model:      "gpt-4.1-mini",
	}
	baseKey := Fingerprint("Hello", base)

	tests := []struct {
		name string
		text string
		cfg  models.TranslationConfig
	}{
		{"different text", "Goodbye", base},
		{"different lang", "Hello", models.TranslationConfig{TargetLang: "ja", Tone: base.Tone, Provider: base.Provider, Model: base.Model}},
		{"different tone", "Hello", models.TranslationConfig{TargetLang: base.TargetLang, Tone: "casual", Provider: base.Provider, Model: base.Model}},
		{"different provider", "Hello", models.TranslationConfig{TargetLang: base.TargetLang, Tone: base.Tone, Provider: models.ProviderGroq, Model: base.Model}},
		{"different model", "Hello", models.TranslationConfig{TargetLang: base.TargetLang, Tone: base.Tone, Provider: base.Provider, Model: "gpt-4.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.text, tt.cfg); got == baseKey {
				t.Errorf("fingerprint collided with base key %s", baseKey)
			}
		})
	}
}
