// Package circuitbreaker stops a reconciliation run from hammering the
// embedding service or the article database once either is failing. It is a
// thin layer over github.com/sony/gobreaker.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"semantic-linker/internal/domain/entity"
)

// Config describes when a breaker opens and how it recovers.
type Config struct {
	Name string

	// MaxRequests is the number of probe calls let through while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts; zero never resets them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// The breaker opens once at least MinRequests calls were counted and
	// the failed share reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32

	OnStateChange func(name string, from, to gobreaker.State)

	// IsSuccessful decides which errors do not count against the service.
	// Nil counts every error.
	IsSuccessful func(err error) bool
}

// EmbeddingAPIConfig guards the embedding service. A refresh pass fans out
// many requests at once, so it waits for ten samples before judging.
// Rejected input is the caller's fault and does not count as a failure.
func EmbeddingAPIConfig() Config {
	return Config{
		Name:             "embedding-api",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      10,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, entity.ErrEmbeddingPermanent)
		},
	}
}

func (c Config) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureThreshold
}

func (c Config) stateChanged(name string, from, to gobreaker.State) {
	level := slog.LevelWarn
	if to == gobreaker.StateClosed {
		level = slog.LevelInfo
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		slog.String("circuit", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if c.OnStateChange != nil {
		c.OnStateChange(name, from, to)
	}
}

// CircuitBreaker is a named gobreaker.CircuitBreaker.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		name: cfg.Name,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          cfg.Name,
			MaxRequests:   cfg.MaxRequests,
			Interval:      cfg.Interval,
			Timeout:       cfg.Timeout,
			ReadyToTrip:   cfg.readyToTrip,
			OnStateChange: cfg.stateChanged,
			IsSuccessful:  cfg.IsSuccessful,
		}),
	}
}

// Execute runs fn unless the breaker is open, in which case it returns
// gobreaker.ErrOpenState (or ErrTooManyRequests while half-open).
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// Rejected reports whether err came from the breaker rather than the call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
