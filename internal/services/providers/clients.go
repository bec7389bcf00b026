package providers

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fluxtranslate/flux-relay/internal/models"

	"golang.org/x/sync/singleflight"
)

// clientCache deduplicates SDK client construction. Clients are keyed by
// a hash of the provider config, so a key rotation or base URL change
// yields a fresh client while steady-state runs reuse one. The factory
// runs at most once per key even under concurrent batches.
type clientCache[T any] struct {
	cache   sync.Map
	sfGroup singleflight.Group
}

func (c *clientCache[T]) getOrCreate(key string, factory func() (T, error)) (T, error) {
	if cached, ok := c.cache.Load(key); ok {
		return cached.(T), nil
	}

	v, err, _ := c.sfGroup.Do(key, func() (any, error) {
		if cached, ok := c.cache.Load(key); ok {
			return cached.(T), nil
		}
		client, err := factory()
		if err != nil {
			var zero T
			return zero, err
		}
		c.cache.Store(key, client)
		return client, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// configHash fingerprints the provider config fields that require a new
// SDK client. The API key is hashed before inclusion so the fingerprint
// never embeds the raw secret.
func configHash(cfg models.ProviderConfig) (string, error) {
	type hashFields struct {
		BaseURL    string
		TimeoutMs  int
		Headers    map[string]string
		APIKeyHash string
	}

	apiKeyHash := sha256.Sum256([]byte(cfg.APIKey))
	fields := hashFields{
		BaseURL:    cfg.BaseURL,
		TimeoutMs:  cfg.TimeoutMs,
		Headers:    cfg.Headers,
		APIKeyHash: fmt.Sprintf("%x", apiKeyHash[:8]),
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:16]), nil
}
