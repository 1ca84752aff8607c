package db

import (
	"context"
	"database/sql"
	"fmt"
)

// AdvisoryLocker provides cross-process mutual exclusion per workspace using
// Postgres session-level advisory locks. Each held lock pins one pooled connection.
type AdvisoryLocker struct {
	db *sql.DB
}

// NewAdvisoryLocker creates a locker over the given pool.
func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// TryLock attempts to take the workspace lock without waiting.
// When acquired is false another process holds the lock and unlock is nil.
func (l *AdvisoryLocker) TryLock(ctx context.Context, workspaceID string) (unlock func(), acquired bool, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("TryLock: %w", err)
	}

	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, workspaceID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("TryLock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	unlock = func() {
		// The caller's context may already be cancelled; release on a fresh one.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, workspaceID)
		_ = conn.Close()
	}
	return unlock, true, nil
}
