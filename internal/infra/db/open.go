package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pkgconfig "semantic-linker/internal/pkg/config"
)

// ErrMissingDSN is returned by Open when DATABASE_URL is not set.
var ErrMissingDSN = errors.New("DATABASE_URL not set")

// PoolConfig sizes the connection pool. A reconciliation pass holds at most
// one connection per refresh worker plus one for the link map transaction.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func defaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// LoadPoolConfig reads the DB_* pool variables. Invalid values fall back to
// the defaults with a warning.
func LoadPoolConfig(logger *slog.Logger) PoolConfig {
	cfg := defaultPoolConfig()
	rec := pkgconfig.NewRecorder(logger, nil)
	positive := func(n int) error { return pkgconfig.ValidateIntRange(n, 1, 1000) }

	cfg.MaxOpenConns = rec.Track("max_open_conns",
		pkgconfig.LoadEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, positive)).(int)
	cfg.MaxIdleConns = rec.Track("max_idle_conns",
		pkgconfig.LoadEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, positive)).(int)
	cfg.ConnMaxLifetime = rec.Track("conn_max_lifetime",
		pkgconfig.LoadEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, pkgconfig.ValidatePositiveDuration)).(time.Duration)
	cfg.ConnMaxIdleTime = rec.Track("conn_max_idle_time",
		pkgconfig.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, pkgconfig.ValidatePositiveDuration)).(time.Duration)
	cfg.PingTimeout = rec.Track("ping_timeout",
		pkgconfig.LoadEnvDuration("DB_PING_TIMEOUT", cfg.PingTimeout, pkgconfig.ValidatePositiveDuration)).(time.Duration)

	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return cfg
}

func (c PoolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

// Open connects to the article database named by DATABASE_URL through the
// pgx driver and pings it before returning.
func Open(ctx context.Context) (*sql.DB, error) {
	dsn := pkgconfig.LoadEnvString("DATABASE_URL", "")
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cfg := LoadPoolConfig(slog.Default())
	cfg.apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime))
	return db, nil
}
