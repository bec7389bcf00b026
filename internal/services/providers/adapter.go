// Package providers implements the uniform adapter layer over the
// built-in translation backends. Every adapter builds the shared
// translation prompt, calls its provider through the official SDK, and
// parses the structured response defensively.
package providers

import (
	"context"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

// Translation is one translated fragment as returned by a provider.
type Translation struct {
	ID   string
	Text string
}

// Adapter is the uniform capability every provider backend implements.
// The returned slice matches the batch's cardinality and order when the
// provider behaves; callers must still key results by ID, never by
// position.
type Adapter interface {
	// TranslateBatch sends one batch to the provider and returns the
	// translated items. Parse failures degrade to an empty slice rather
	// than an error; transport failures surface as *models.AppError.
	TranslateBatch(ctx context.Context, providerCfg models.ProviderConfig, cfg models.TranslationConfig, batch models.Batch) ([]Translation, error)

	// ID returns the provider this adapter serves.
	ID() models.ProviderID
}

// Registry holds one adapter per built-in provider. Adapters cache their
// SDK clients internally, so the registry is created once per process.
type Registry struct {
	adapters map[models.ProviderID]Adapter
}

// NewRegistry constructs adapters for the closed provider set.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[models.ProviderID]Adapter)}
	for _, a := range []Adapter{
		newOpenAIAdapter(),
		newAnthropicAdapter(),
		newGeminiAdapter(),
		newGroqAdapter(),
	} {
		r.adapters[a.ID()] = a
	}
	return r
}

// NewRegistryWith builds a registry from explicit adapters, for
// embedders that swap in custom backends.
func NewRegistryWith(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.ProviderID]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

// ForProvider returns the adapter for id. Unknown ids report false; the
// provider set is closed and never extended at runtime.
func (r *Registry) ForProvider(id models.ProviderID) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}
