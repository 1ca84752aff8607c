// Package retry re-runs calls to the embedding service with exponential
// backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"

	"semantic-linker/internal/domain/entity"
)

// Policy bounds how often and how patiently a call is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction of each delay added at random, clamped to [0, 1].
	Jitter float64

	// Retryable decides whether an error earns another attempt.
	// Nil means Transient.
	Retryable func(err error) bool
}

// EmbeddingAPIConfig is the policy for one embedding request. Delays are
// short because the whole call runs under the embedder's per-article timeout,
// and a text that still fails is retried on the next reconciliation pass.
func EmbeddingAPIConfig() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// WithBackoff calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. A cancelled wait returns ctx.Err() joined
// with the last failure.
func WithBackoff(ctx context.Context, p Policy, fn func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = Transient
	}
	attempts := max(p.MaxAttempts, 1)

	var err error
	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				slog.DebugContext(ctx, "embedding call recovered", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			return &ExhaustedError{Attempts: attempt, Last: err}
		}

		wait := jittered(delay, p.Jitter)
		slog.WarnContext(ctx, "embedding call failed, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		}

		delay = min(time.Duration(float64(delay)*p.Multiplier), p.MaxDelay)
	}
}

// Transient reports whether err is worth another attempt: anything wrapping
// entity.ErrEmbeddingTransient, network timeouts and dropped connections.
// Context cancellation never is.
func Transient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, entity.ErrEmbeddingPermanent):
		return false
	case errors.Is(err, entity.ErrEmbeddingTransient):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH)
}

func jittered(d time.Duration, fraction float64) time.Duration {
	fraction = min(max(fraction, 0), 1)
	if fraction == 0 || d <= 0 {
		return d
	}
	// #nosec G404 -- backoff jitter needs no cryptographic randomness.
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
