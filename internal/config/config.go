package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fluxtranslate/flux-relay/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server         models.ServerConfig              `yaml:"server"`
	Providers      map[string]models.ProviderConfig `yaml:"providers"`
	Pipeline       models.PipelineConfig            `yaml:"pipeline"`
	Cache          models.CacheConfig               `yaml:"cache"`
	CircuitBreaker models.CircuitBreakerConfig      `yaml:"circuit_breaker"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalized := make(map[string]models.ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalized[strings.ToLower(key)] = value
		}
		config.Providers = normalized
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// GetProviderAPIKey returns the API key configured for a provider, or ""
// when the provider is unconfigured. A missing key is a fatal precondition
// for a translation run.
func (c *Config) GetProviderAPIKey(provider models.ProviderID) string {
	if cfg, exists := c.GetProviderConfig(provider); exists {
		return cfg.APIKey
	}
	return ""
}

// GetProviderConfig returns the configuration for a specific provider
func (c *Config) GetProviderConfig(provider models.ProviderID) (models.ProviderConfig, bool) {
	cfg, exists := c.Providers[strings.ToLower(string(provider))]
	return cfg, exists
}

// TranslationDefaults assembles the default TranslationConfig from the
// pipeline section. Request overrides are merged on top per run.
func (c *Config) TranslationDefaults() models.TranslationConfig {
	return models.TranslationConfig{
		TargetLang: c.Pipeline.TargetLang,
		Tone:       c.Pipeline.Tone,
		Provider:   c.Pipeline.Provider,
		Model:      c.Pipeline.Model,
		Glossary:   c.Pipeline.Glossary,
	}
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Pipeline.Provider != "" && !c.Pipeline.Provider.Valid() {
		return fmt.Errorf("unsupported default provider: %s", c.Pipeline.Provider)
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.RedisURL == "" {
		missing = append(missing, "circuit_breaker.redis_url")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError reports configuration fields that are required but unset
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.MissingFields, ", "))
}
