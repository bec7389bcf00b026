package models

// ProviderConfig holds per-provider settings (unified for YAML config and
// request overrides). The API key is supplied to the SDK per call and is
// never persisted outside the settings store.
type ProviderConfig struct {
	APIKey    string            `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL   string            `yaml:"base_url" json:"base_url,omitzero"`     // Optional custom base URL
	TimeoutMs int               `yaml:"timeout_ms" json:"timeout_ms,omitzero"` // Optional timeout in milliseconds
	Retry     *RetryConfig      `yaml:"retry" json:"retry,omitzero"`           // Per-provider retry override
	Headers   map[string]string `yaml:"headers" json:"headers,omitzero"`       // Optional custom headers
}

// RetryConfig controls the backoff policy applied to retryable provider
// failures. A nil config means the provider fails immediately on any
// non-2xx response, matching the historical behavior of every provider
// except Groq.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts,omitzero"`
	BaseDelayMs int `yaml:"base_delay_ms" json:"base_delay_ms,omitzero"`
	MaxDelayMs  int `yaml:"max_delay_ms" json:"max_delay_ms,omitzero"`
}
