package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-linker/internal/observability/metrics"
)

const listEmbeddings = "SELECT article_id FROM article_embeddings WHERE workspace_id = $1"

// fastDBConfig trips after 5 failures and probes again after 50ms.
func fastDBConfig() Config {
	cfg := DBConfig()
	cfg.Name = "test-db"
	cfg.Timeout = 50 * time.Millisecond
	return cfg
}

func newMockBreaker(t *testing.T, cfg Config) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual), sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDBCircuitBreakerWithConfig(db, cfg), mock
}

func trip(t *testing.T, dcb *DBCircuitBreaker, mock sqlmock.Sqlmock) {
	t.Helper()
	for i := 0; i < 5; i++ {
		mock.ExpectQuery(listEmbeddings).WillReturnError(errors.New("connection refused"))
		_, err := dcb.QueryContext(context.Background(), listEmbeddings, "ws-1")
		require.Error(t, err)
	}
	require.True(t, dcb.IsOpen(), "state %s", dcb.State())
}

func TestNewDBCircuitBreaker(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dcb := NewDBCircuitBreaker(db)

	assert.Same(t, db, dcb.DB())
	assert.Equal(t, "database", dcb.cb.Name())
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
}

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())

	mock.ExpectQuery(listEmbeddings).WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"article_id"}).AddRow("a1").AddRow("a2"))

	rows, err := dcb.QueryContext(context.Background(), listEmbeddings, "ws-1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())
	const del = "DELETE FROM article_embeddings WHERE article_id = $1"

	mock.ExpectExec(del).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := dcb.ExecContext(context.Background(), del, "a1")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())
	trip(t, dcb, mock)

	_, err := dcb.QueryContext(context.Background(), listEmbeddings, "ws-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	_, err = dcb.ExecContext(context.Background(), "DELETE FROM embedding_failures")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// Nothing reached the database while open.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())
	trip(t, dcb, mock)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, dcb.State())

	mock.ExpectQuery(listEmbeddings).WillReturnRows(sqlmock.NewRows([]string{"article_id"}))
	rows, err := dcb.QueryContext(context.Background(), listEmbeddings, "ws-1")
	require.NoError(t, err)
	_ = rows.Close()
}

func TestDBCircuitBreaker_IgnoresCancellationAndNoRows(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "context canceled", err: context.Canceled},
		{name: "deadline exceeded", err: context.DeadlineExceeded},
		{name: "no rows", err: sql.ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dcb, mock := newMockBreaker(t, fastDBConfig())
			for i := 0; i < 10; i++ {
				mock.ExpectQuery(listEmbeddings).WillReturnError(tt.err)
				_, err := dcb.QueryContext(context.Background(), listEmbeddings, "ws-1")
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, gobreaker.StateClosed, dcb.State())
		})
	}
}

func TestDBCircuitBreaker_PingContext(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())

	mock.ExpectPing()
	assert.NoError(t, dcb.PingContext(context.Background()))

	trip(t, dcb, mock)
	assert.ErrorIs(t, dcb.PingContext(context.Background()), gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_QueryRowContextBypassesBreaker(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())
	trip(t, dcb, mock)

	const get = "SELECT model_version FROM article_embeddings WHERE article_id = $1"
	mock.ExpectQuery(get).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"model_version"}).AddRow("text-embedding-3-small"))

	var version string
	require.NoError(t, dcb.QueryRowContext(context.Background(), get, "a1").Scan(&version))
	assert.Equal(t, "text-embedding-3-small", version)
}

func TestDBCircuitBreaker_StateGauge(t *testing.T) {
	dcb, mock := newMockBreaker(t, fastDBConfig())
	trip(t, dcb, mock)

	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.DBCircuitBreakerState))

	time.Sleep(80 * time.Millisecond)
	_ = dcb.State()
	assert.Equal(t, float64(gobreaker.StateHalfOpen), testutil.ToFloat64(metrics.DBCircuitBreakerState))
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	assert.Equal(t, "database", cfg.Name)
	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 1.0, cfg.FailureThreshold)
	assert.NotNil(t, cfg.OnStateChange)
	assert.False(t, cfg.IsSuccessful(errors.New("connection refused")))
	assert.True(t, cfg.IsSuccessful(nil))
}
