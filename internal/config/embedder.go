package config

import (
	"fmt"
	"log/slog"
	"time"

	envconfig "semantic-linker/internal/pkg/config"
)

// Embedder providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// EmbedderConfig holds configuration for the embedding service client.
type EmbedderConfig struct {
	// Provider is "openai" for any OpenAI-compatible endpoint, or "hashing"
	// for the deterministic offline embedder.
	// Default: "openai"
	Provider string

	// APIKey authenticates against the embedding endpoint. Required for openai.
	APIKey string

	// BaseURL overrides the API base URL (self-hosted or proxy endpoints).
	BaseURL string

	// Models maps engine model versions to provider model names.
	// Format: "v1=text-embedding-3-small,v2=text-embedding-3-large"
	Models map[string]string

	// RequestsPerSecond limits outgoing requests. 0 disables the limiter.
	// Default: 10
	RequestsPerSecond float64

	// Burst is the rate limiter bucket size.
	// Default: 5
	Burst int

	// Timeout bounds one Embed call including retries.
	// Default: 30s
	Timeout time.Duration
}

// LoadEmbedderConfig loads the embedding client configuration from environment variables.
//
// Environment variables:
//   - EMBEDDER_PROVIDER: openai or hashing (default: openai)
//   - OPENAI_API_KEY
//   - EMBEDDING_BASE_URL
//   - EMBEDDING_MODELS: version=model pairs
//   - EMBEDDING_RPS, EMBEDDING_BURST, EMBEDDING_REQUEST_TIMEOUT
func LoadEmbedderConfig(logger *slog.Logger, metrics *envconfig.ConfigMetrics) (*EmbedderConfig, error) {
	cfg := &EmbedderConfig{
		Provider:          ProviderOpenAI,
		RequestsPerSecond: 10,
		Burst:             5,
		Timeout:           30 * time.Second,
	}
	rec := envconfig.NewRecorder(logger, metrics)
	defer rec.Finish()

	cfg.Provider = rec.Track("embedder_provider",
		envconfig.LoadEnvWithFallback("EMBEDDER_PROVIDER", cfg.Provider, func(s string) error {
			if s != ProviderOpenAI && s != ProviderHashing {
				return fmt.Errorf("unknown provider %q", s)
			}
			return nil
		})).(string)
	cfg.APIKey = envconfig.LoadEnvString("OPENAI_API_KEY", "")
	cfg.BaseURL = rec.Track("embedding_base_url",
		envconfig.LoadEnvWithFallback("EMBEDDING_BASE_URL", "", envconfig.ValidateHTTPURL)).(string)
	cfg.Models, _ = rec.Track("embedding_models",
		envconfig.LoadEnvStringMap("EMBEDDING_MODELS", nil)).(map[string]string)
	cfg.RequestsPerSecond = rec.Track("embedding_rps",
		envconfig.LoadEnvFloat("EMBEDDING_RPS", cfg.RequestsPerSecond, func(v float64) error {
			return envconfig.ValidateFloatRange(v, 0, 10_000)
		})).(float64)
	cfg.Burst = rec.Track("embedding_burst",
		envconfig.LoadEnvInt("EMBEDDING_BURST", cfg.Burst, func(v int) error {
			return envconfig.ValidateIntRange(v, 1, 1000)
		})).(int)
	cfg.Timeout = rec.Track("embedding_request_timeout",
		envconfig.LoadEnvDuration("EMBEDDING_REQUEST_TIMEOUT", cfg.Timeout, envconfig.ValidatePositiveDuration)).(time.Duration)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration correctness.
func (c *EmbedderConfig) Validate() error {
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	return nil
}
