package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/fluxtranslate/flux-relay/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const defaultSemanticThreshold = 0.99

// SemanticStore is an optional similarity layer in front of the provider
// call: when the exact fingerprint cache misses, a near-identical source
// fragment translated under the same configuration can still be served
// without a provider round trip. Disabled unless an embedding key is
// configured.
type SemanticStore struct {
	cache     *semanticcache.SemanticCache[string, string]
	threshold float32
}

// NewSemanticStore builds the similarity layer from config. Returns
// (nil, nil) when the layer is disabled.
func NewSemanticStore(cfg models.SemanticCacheConfig) (*SemanticStore, error) {
	if !cfg.Enabled || cfg.OpenAIAPIKey == "" {
		fiberlog.Info("SemanticStore: disabled, exact fingerprint cache only")
		return nil, nil
	}

	threshold := cfg.SemanticThreshold
	if threshold <= 0 || threshold > 1 {
		fiberlog.Warnf("SemanticStore: invalid threshold %.2f, using default %.2f", threshold, defaultSemanticThreshold)
		threshold = defaultSemanticThreshold
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	backend := cfg.Backend
	if backend == "" {
		backend = models.CacheBackendMemory
	}

	var (
		sc  *semanticcache.SemanticCache[string, string]
		err error
	)
	switch backend {
	case models.CacheBackendMemory:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1000
		}
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, string](cfg.OpenAIAPIKey, embedModel),
			options.WithLRUBackend[string, string](capacity),
		)
	case models.CacheBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL not set for redis backend")
		}
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, string](cfg.OpenAIAPIKey, embedModel),
			options.WithRedisBackend[string, string](cfg.RedisURL, 0),
		)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: redis, memory)", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create semantic cache: %w", err)
	}

	fiberlog.Infof("SemanticStore: enabled (backend=%s, threshold=%.2f)", backend, threshold)
	return &SemanticStore{cache: sc, threshold: float32(threshold)}, nil
}

// scopedPrompt embeds the translation configuration alongside the source
// text so similarity never matches across languages, tones, or models.
func scopedPrompt(text string, cfg models.TranslationConfig) string {
	return strings.Join([]string{cfg.TargetLang, cfg.Tone, string(cfg.Provider), cfg.Model, text}, "\n")
}

// Get looks up a translation by exact embedding key first, then by
// similarity. Lookup failures degrade to a miss.
func (ss *SemanticStore) Get(ctx context.Context, text string, cfg models.TranslationConfig) (string, bool) {
	if ss == nil {
		return "", false
	}
	prompt := scopedPrompt(text, cfg)

	if hit, found, err := ss.cache.Get(ctx, prompt); found && err == nil {
		return hit, true
	} else if err != nil {
		fiberlog.Errorf("SemanticStore: exact lookup failed: %v", err)
	}

	if match, err := ss.cache.Lookup(ctx, prompt, ss.threshold); err == nil && match != nil {
		return match.Value, true
	} else if err != nil {
		fiberlog.Errorf("SemanticStore: similarity lookup failed: %v", err)
	}

	return "", false
}

// Set stores a translation under the scoped source prompt.
func (ss *SemanticStore) Set(ctx context.Context, text string, cfg models.TranslationConfig, translated string) {
	if ss == nil {
		return
	}
	prompt := scopedPrompt(text, cfg)
	if err := ss.cache.Set(ctx, prompt, prompt, translated); err != nil {
		fiberlog.Errorf("SemanticStore: failed to store entry: %v", err)
	}
}
