package models

// CacheBackendType represents the type of semantic cache backend to use
type CacheBackendType string

const (
	CacheBackendRedis  CacheBackendType = "redis"
	CacheBackendMemory CacheBackendType = "memory"
)

// DefaultCacheMaxItems bounds the fingerprint cache; oldest-inserted
// entries are evicted beyond this.
const DefaultCacheMaxItems = 2000

// CacheConfig holds configuration for the translation fingerprint cache.
type CacheConfig struct {
	MaxItems int             `yaml:"max_items" json:"max_items,omitzero"`
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitzero"`

	// Semantic enables a similarity lookup over source text in front of
	// the provider call, in addition to the exact fingerprint cache.
	Semantic SemanticCacheConfig `yaml:"semantic" json:"semantic,omitzero"`
}

// Max returns the configured item bound, falling back to the default.
func (c CacheConfig) Max() int {
	if c.MaxItems > 0 {
		return c.MaxItems
	}
	return DefaultCacheMaxItems
}

// SemanticCacheConfig configures the optional embedding-based cache layer.
type SemanticCacheConfig struct {
	Enabled           bool             `yaml:"enabled" json:"enabled,omitzero"`
	Backend           CacheBackendType `yaml:"backend" json:"backend,omitzero"`     // "redis" or "memory"
	RedisURL          string           `yaml:"redis_url" json:"redis_url,omitzero"` // Required if backend is "redis"
	Capacity          int              `yaml:"capacity" json:"capacity,omitzero"`   // Required if backend is "memory" (LRU size)
	SemanticThreshold float64          `yaml:"semantic_threshold" json:"semantic_threshold,omitzero"`
	OpenAIAPIKey      string           `yaml:"openai_api_key" json:"openai_api_key,omitzero"`
	EmbeddingModel    string           `yaml:"embedding_model" json:"embedding_model,omitzero"`
}
