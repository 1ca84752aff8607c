package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"semantic-linker/internal/domain/entity"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

var errUnavailable = fmt.Errorf("HTTP 503: %w", entity.ErrEmbeddingTransient)

func TestWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		err          error
		wantAttempts int
		wantErr      bool
	}{
		{name: "first call succeeds", failures: 0, err: errUnavailable, wantAttempts: 1},
		{name: "recovers on third call", failures: 2, err: errUnavailable, wantAttempts: 3},
		{name: "exhausts attempts", failures: 10, err: errUnavailable, wantAttempts: 3, wantErr: true},
		{
			name:         "permanent error stops immediately",
			failures:     10,
			err:          fmt.Errorf("HTTP 400: %w", entity.ErrEmbeddingPermanent),
			wantAttempts: 1,
			wantErr:      true,
		},
		{name: "unclassified error is not retried", failures: 10, err: errors.New("boom"), wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithBackoff(context.Background(), fastPolicy(3), func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.err
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("WithBackoff() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("error %v does not wrap %v", err, tt.err)
			}
		})
	}
}

func TestWithBackoff_Exhausted(t *testing.T) {
	err := WithBackoff(context.Background(), fastPolicy(2), func() error { return errUnavailable })

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exhausted.Attempts)
	}
	if !errors.Is(err, entity.ErrEmbeddingTransient) {
		t.Errorf("exhausted error must keep the transient classification: %v", err)
	}
}

func TestWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	_ = WithBackoff(context.Background(), Policy{}, func() error {
		attempts++
		return errUnavailable
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithBackoff_ContextCancelledDuringWait(t *testing.T) {
	p := fastPolicy(5)
	p.InitialDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts := 0
	err := WithBackoff(ctx, p, func() error {
		attempts++
		return errUnavailable
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, entity.ErrEmbeddingTransient) {
		t.Errorf("expected last failure in the error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff wait ignored context cancellation")
	}
}

func TestWithBackoff_CustomRetryable(t *testing.T) {
	throttled := errors.New("throttled")
	p := fastPolicy(3)
	p.Retryable = func(err error) bool { return errors.Is(err, throttled) }

	attempts := 0
	_ = WithBackoff(context.Background(), p, func() error {
		attempts++
		return throttled
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	attempts = 0
	_ = WithBackoff(context.Background(), p, func() error {
		attempts++
		return errUnavailable
	})
	if attempts != 1 {
		t.Errorf("custom classifier must replace Transient, got %d attempts", attempts)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "transient sentinel", err: errUnavailable, want: true},
		{name: "permanent sentinel", err: fmt.Errorf("x: %w", entity.ErrEmbeddingPermanent), want: false},
		{
			name: "permanent wins over transient",
			err:  fmt.Errorf("%w: %w", entity.ErrEmbeddingPermanent, entity.ErrEmbeddingTransient),
			want: false,
		},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: false},
		{name: "network timeout", err: timeoutErr{}, want: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "plain error", err: errors.New("invalid"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestEmbeddingAPIConfig(t *testing.T) {
	p := EmbeddingAPIConfig()

	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", p.InitialDelay)
	}
	if p.MaxDelay != 4*time.Second {
		t.Errorf("MaxDelay = %v, want 4s", p.MaxDelay)
	}
	if p.Retryable != nil {
		t.Error("default policy should classify with Transient")
	}
}

func TestJittered(t *testing.T) {
	const d = 100 * time.Millisecond

	seen := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		got := jittered(d, 0.2)
		if got < d || got > d+20*time.Millisecond {
			t.Fatalf("jittered(%v, 0.2) = %v, out of range", d, got)
		}
		seen[got] = true
	}
	if len(seen) < 2 {
		t.Error("expected varied jitter")
	}

	if got := jittered(d, 0); got != d {
		t.Errorf("zero fraction changed the delay: %v", got)
	}
	if got := jittered(d, 5); got > 2*d {
		t.Errorf("fraction above 1 must be clamped, got %v", got)
	}
}
