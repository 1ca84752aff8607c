package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"semantic-linker/internal/observability/metrics"
)

// DBCircuitBreaker guards the read paths of the article and embedding stores.
// When the database is down, a reconciliation run fails fast in its first phase
// instead of waiting out a connection timeout per article.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig returns the database breaker configuration: it opens after 5
// consecutive failed calls and probes again after 30 seconds. Cancelled or
// timed-out contexts do not count as failures; a run that runs out of its
// refresh budget says nothing about database health.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.RecordDBBreakerState(int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, sql.ErrNoRows)
		},
	}
}

// NewDBCircuitBreaker wraps db with the DBConfig breaker.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

// NewDBCircuitBreakerWithConfig wraps db with a breaker built from cfg.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

func guard[T any](dcb *DBCircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// QueryContext runs a query through the breaker. An open breaker returns
// gobreaker.ErrOpenState without touching the database.
func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return guard(dcb, func() (*sql.Rows, error) {
		return dcb.db.QueryContext(ctx, query, args...)
	})
}

// ExecContext runs a statement through the breaker.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return guard(dcb, func() (sql.Result, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext bypasses the breaker: *sql.Row defers its error to Scan, so
// the outcome is not known here.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return dcb.db.QueryRowContext(ctx, query, args...)
}

// PingContext checks the database through the breaker.
func (dcb *DBCircuitBreaker) PingContext(ctx context.Context) error {
	_, err := guard(dcb, func() (struct{}, error) {
		return struct{}{}, dcb.db.PingContext(ctx)
	})
	return err
}

// State returns the current state of the circuit breaker.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether the breaker rejects calls.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB returns the unguarded pool, used by the link map's transactions.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
