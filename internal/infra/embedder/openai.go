// Package embedder provides embedding service clients: an OpenAI-compatible
// HTTP client with circuit breaker, retry and client-side rate limiting, and a
// deterministic hashing embedder for dry runs and tests.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/resilience/circuitbreaker"
	"semantic-linker/internal/resilience/retry"
)

// OpenAIConfig holds configuration parameters for the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey is sent as a bearer token.
	APIKey string

	// BaseURL points at any OpenAI-compatible API. Empty means api.openai.com.
	BaseURL string

	// Models maps engine model versions to API model names.
	// A model version without an entry is sent as is.
	Models map[string]string

	// Dimensions requests vectors of the registered length per model version.
	// It is only sent to models that accept the parameter.
	Dimensions map[string]int

	// RequestsPerSecond limits outgoing calls. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter's bucket size.
	Burst int

	// Timeout bounds a single Embed call including retries.
	Timeout time.Duration
}

// Validate checks the configuration.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting, got %d", c.Burst)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// OpenAI embeds text through an OpenAI-compatible embeddings endpoint.
// Returned errors wrap entity.ErrEmbeddingTransient or entity.ErrEmbeddingPermanent.
type OpenAI struct {
	client         *openai.Client
	config         OpenAIConfig
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryPolicy    retry.Policy
	metrics        MetricsRecorder
}

// NewOpenAI creates an embedder from a validated configuration.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder configuration: %w", err)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	metrics := NewPrometheusMetrics()

	cbCfg := circuitbreaker.EmbeddingAPIConfig()
	cbCfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		metrics.RecordBreakerState(to)
	}

	slog.Info("initialized embedding client",
		slog.String("base_url", clientCfg.BaseURL),
		slog.Float64("requests_per_second", cfg.RequestsPerSecond),
		slog.Duration("timeout", cfg.Timeout))

	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		config:         cfg,
		limiter:        limiter,
		circuitBreaker: circuitbreaker.New(cbCfg),
		retryPolicy:    retry.EmbeddingAPIConfig(),
		metrics:        metrics,
	}, nil
}

// Embed returns the vector of text under modelVersion.
func (o *OpenAI) Embed(ctx context.Context, text, modelVersion string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: empty text: %w", entity.ErrEmbeddingPermanent)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var vector []float32
	err := retry.WithBackoff(ctx, o.retryPolicy, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %v: %w", err, entity.ErrEmbeddingTransient)
		}

		result, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doEmbed(ctx, text, modelVersion)
		})
		if err != nil {
			if circuitbreaker.Rejected(err) {
				slog.Warn("embedding api circuit breaker open, request rejected",
					slog.String("service", o.circuitBreaker.Name()),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("embedding api unavailable: %v: %w", err, entity.ErrEmbeddingTransient)
			}
			return err
		}

		vector = result.([]float32)
		return nil
	})
	if err != nil {
		if !errors.Is(err, entity.ErrEmbeddingPermanent) && !errors.Is(err, entity.ErrEmbeddingTransient) {
			err = fmt.Errorf("%w: %w", entity.ErrEmbeddingTransient, err)
		}
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vector, nil
}

// doEmbed performs a single API call without retry or circuit breaker.
func (o *OpenAI) doEmbed(ctx context.Context, text, modelVersion string) ([]float32, error) {
	model := modelVersion
	if name, ok := o.config.Models[modelVersion]; ok && name != "" {
		model = name
	}

	var dims int
	if AcceptsDimensions(model) {
		dims = o.config.Dimensions[modelVersion]
	}

	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(model),
		Dimensions: dims,
	})
	duration := time.Since(start)

	if err != nil {
		classified := Classify(err)
		o.metrics.RecordRequest(outcomeOf(classified), duration)
		slog.WarnContext(ctx, "embedding request failed",
			slog.String("model", model),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, classified
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		o.metrics.RecordRequest(outcomeTransient, duration)
		return nil, fmt.Errorf("embedding api returned empty response: %w", entity.ErrEmbeddingTransient)
	}

	o.metrics.RecordRequest(outcomeSuccess, duration)
	slog.DebugContext(ctx, "embedding request completed",
		slog.String("model", model),
		slog.Int("dimensions", len(resp.Data[0].Embedding)),
		slog.Duration("duration", duration))
	return resp.Data[0].Embedding, nil
}

// Classify wraps an embedding API error with entity.ErrEmbeddingPermanent when the
// service rejected the input (4xx other than 408 and 429) and with
// entity.ErrEmbeddingTransient otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, entity.ErrEmbeddingPermanent) || errors.Is(err, entity.ErrEmbeddingTransient) {
		return err
	}
	if status := statusCode(err); status >= 400 && status < 500 &&
		status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return fmt.Errorf("embedding api error (HTTP %d): %w: %w", status, entity.ErrEmbeddingPermanent, err)
	}
	return fmt.Errorf("embedding api error: %w: %w", entity.ErrEmbeddingTransient, err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// AcceptsDimensions reports whether the API honors the dimensions parameter for
// model. Older models reject the request when it is set.
func AcceptsDimensions(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}
