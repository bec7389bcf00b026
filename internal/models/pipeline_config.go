package models

// Batching defaults match the extension's shipped settings.
const (
	DefaultMaxConcurrentBatches = 6
	DefaultBatchCharBudget      = 1200

	// BatchItemOverhead is the fixed per-item cost added to the text
	// length when estimating batch size (JSON envelope per item).
	BatchItemOverhead = 8
)

// PipelineConfig holds the translation defaults applied when a request
// does not override them, plus the batching and concurrency knobs for
// the scheduler.
type PipelineConfig struct {
	TargetLang           string          `yaml:"target_lang" json:"target_lang,omitzero"`
	Tone                 string          `yaml:"tone" json:"tone,omitzero"`
	Provider             ProviderID      `yaml:"provider" json:"provider,omitzero"`
	Model                string          `yaml:"model" json:"model,omitzero"`
	Glossary             []GlossaryEntry `yaml:"glossary" json:"glossary,omitzero"`
	MaxConcurrentBatches int             `yaml:"max_concurrent_batches" json:"max_concurrent_batches,omitzero"`
	BatchCharBudget      int             `yaml:"batch_char_budget" json:"batch_char_budget,omitzero"`
}

// Concurrency returns the configured worker limit, falling back to the
// default when unset.
func (p PipelineConfig) Concurrency() int {
	if p.MaxConcurrentBatches > 0 {
		return p.MaxConcurrentBatches
	}
	return DefaultMaxConcurrentBatches
}

// CharBudget returns the configured batch character budget, falling back
// to the default when unset.
func (p PipelineConfig) CharBudget() int {
	if p.BatchCharBudget > 0 {
		return p.BatchCharBudget
	}
	return DefaultBatchCharBudget
}

// CircuitBreakerConfig enables the per-provider circuit breaker. Breaker
// state lives in Redis so multiple relay instances share one view of a
// provider's health.
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled,omitzero"`
	RedisURL         string `yaml:"redis_url" json:"redis_url,omitzero"`
	FailureThreshold int    `yaml:"failure_threshold" json:"failure_threshold,omitzero"`
	SuccessThreshold int    `yaml:"success_threshold" json:"success_threshold,omitzero"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" json:"timeout_seconds,omitzero"`
}
