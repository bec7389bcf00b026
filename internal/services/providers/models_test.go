package providers

import (
	"testing"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

func TestDefaultModelCoverage(t *testing.T) {
	for _, id := range models.AllProviders() {
		def := DefaultModel(id)
		if def == "" {
			t.Errorf("provider %s has no default model", id)
			continue
		}
		found := false
		for _, opt := range ModelOptions(id) {
			if opt == def {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("provider %s default %q not in its catalog", id, def)
		}
	}
}

func TestCoerceModel(t *testing.T) {
	tests := []struct {
		name     string
		provider models.ProviderID
		model    string
		want     string
	}{
		{"known model kept", models.ProviderOpenAI, "gpt-4.1", "gpt-4.1"},
		{"unknown model coerced", models.ProviderOpenAI, "claude-sonnet-4-20250514", "gpt-4.1-mini"},
		{"empty model coerced", models.ProviderGroq, "", "llama-3.3-70b-versatile"},
		{"unknown provider yields empty", models.ProviderID("nope"), "gpt-4.1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceModel(tt.provider, tt.model); got != tt.want {
				t.Errorf("CoerceModel(%s, %q) = %q, want %q", tt.provider, tt.model, got, tt.want)
			}
		})
	}
}

func TestModelOptionsCopy(t *testing.T) {
	opts := ModelOptions(models.ProviderOpenAI)
	if len(opts) == 0 {
		t.Fatal("openai catalog is empty")
	}
	opts[0] = "mutated"
	if ModelOptions(models.ProviderOpenAI)[0] == "mutated" {
		t.Error("ModelOptions returned the internal slice")
	}
}

func TestRegistryCoversAllProviders(t *testing.T) {
	r := NewRegistry()
	for _, id := range models.AllProviders() {
		adapter, ok := r.ForProvider(id)
		if !ok {
			t.Errorf("registry missing adapter for %s", id)
			continue
		}
		if adapter.ID() != id {
			t.Errorf("adapter for %s reports ID %s", id, adapter.ID())
		}
	}
	if _, ok := r.ForProvider(models.ProviderID("nope")); ok {
		t.Error("registry returned adapter for unknown provider")
	}
}
