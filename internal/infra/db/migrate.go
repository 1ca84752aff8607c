package db

import (
	"context"
	"database/sql"
	"fmt"
)

// articlesTableDDL mirrors the read-only view the engine expects from the article store.
// The worker never writes to it; it exists so local and test databases are self-contained.
const articlesTableDDL = `
CREATE TABLE IF NOT EXISTS articles (
    id              TEXT PRIMARY KEY,
    workspace_id    TEXT NOT NULL,
    title           TEXT NOT NULL,
    content         TEXT NOT NULL DEFAULT '',
    content_hash    TEXT NOT NULL DEFAULT '',
    target_keywords JSONB NOT NULL DEFAULT '[]',
    published       BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// The vector column has no fixed dimension so that several model versions can
// coexist during a model migration.
const embeddingsTableDDL = `
CREATE TABLE IF NOT EXISTS article_embeddings (
    article_id      TEXT PRIMARY KEY,
    workspace_id    TEXT NOT NULL,
    model_version   TEXT NOT NULL,
    dimension       INT NOT NULL,
    embedding       vector NOT NULL,
    content_hash    TEXT NOT NULL DEFAULT '',
    target_keywords JSONB NOT NULL DEFAULT '[]',
    computed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const failuresTableDDL = `
CREATE TABLE IF NOT EXISTS embedding_failures (
    article_id   TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    reason       TEXT NOT NULL,
    failed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const linkEdgesTableDDL = `
CREATE TABLE IF NOT EXISTS link_edges (
    id               TEXT PRIMARY KEY,
    workspace_id     TEXT NOT NULL,
    from_article_id  TEXT NOT NULL,
    to_article_id    TEXT NOT NULL,
    from_post_id     TEXT NOT NULL,
    to_post_id       TEXT NOT NULL,
    anchor_text      TEXT NOT NULL,
    similarity_score DOUBLE PRECISION NOT NULL,
    link_type        VARCHAR(20) NOT NULL,
    is_applied       BOOLEAN NOT NULL DEFAULT FALSE,
    applied_at       TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    retired_at       TIMESTAMPTZ,
    UNIQUE(from_article_id, to_article_id),
    UNIQUE(from_post_id, to_post_id),
    CONSTRAINT chk_link_edges_not_self CHECK (from_article_id <> to_article_id AND from_post_id <> to_post_id),
    CONSTRAINT chk_link_edges_type CHECK (link_type IN ('semantic', 'string_match'))
)`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_articles_workspace_id ON articles(workspace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_article_embeddings_workspace_model ON article_embeddings(workspace_id, model_version)`,
	`CREATE INDEX IF NOT EXISTS idx_embedding_failures_workspace_id ON embedding_failures(workspace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_link_edges_workspace_id ON link_edges(workspace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_link_edges_to_article_id ON link_edges(to_article_id)`,
}

// MigrateUp creates the schema. Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	// pgvector may already be installed by a superuser; the error is ignored and the
	// embeddings table creation below reports a missing extension.
	_, _ = db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)

	for _, stmt := range []string{articlesTableDDL, embeddingsTableDDL, failuresTableDDL, linkEdgesTableDDL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	return nil
}

// MigrateDown drops the tables owned by the engine.
// The articles table and the vector extension are left in place.
// Use with caution: this will delete all embeddings and link edges.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS link_edges`,
		`DROP TABLE IF EXISTS embedding_failures`,
		`DROP TABLE IF EXISTS article_embeddings`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateDown: %w", err)
		}
	}
	return nil
}
