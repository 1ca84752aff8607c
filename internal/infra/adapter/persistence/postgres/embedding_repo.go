package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/metrics"
	"semantic-linker/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepo implements the EmbeddingRepository interface for PostgreSQL with pgvector.
type EmbeddingRepo struct {
	db Querier
}

// NewEmbeddingRepo creates a new PostgreSQL-based EmbeddingRepository.
func NewEmbeddingRepo(db Querier) repository.EmbeddingRepository {
	return &EmbeddingRepo{
		db: db,
	}
}

const embeddingColumns = `article_id, workspace_id, model_version, embedding, content_hash, target_keywords, computed_at`

// Upsert creates or replaces the embedding of an article.
func (repo *EmbeddingRepo) Upsert(ctx context.Context, emb *entity.ArticleEmbedding) error {
	if emb == nil {
		return fmt.Errorf("Upsert: embedding is nil")
	}
	if err := emb.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	keywords, err := encodeKeywords(emb.TargetKeywords)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	const query = `
INSERT INTO article_embeddings (article_id, workspace_id, model_version, dimension, embedding, content_hash, target_keywords, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (article_id)
DO UPDATE SET
	workspace_id = EXCLUDED.workspace_id,
	model_version = EXCLUDED.model_version,
	dimension = EXCLUDED.dimension,
	embedding = EXCLUDED.embedding,
	content_hash = EXCLUDED.content_hash,
	target_keywords = EXCLUDED.target_keywords,
	computed_at = EXCLUDED.computed_at`

	_, err = repo.db.ExecContext(ctx, query,
		emb.ArticleID,
		emb.WorkspaceID,
		emb.ModelVersion,
		len(emb.Vector),
		pgvector.NewVector(emb.Vector),
		emb.ContentHash,
		keywords,
		emb.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Get returns the embedding of an article or entity.ErrNotFound.
func (repo *EmbeddingRepo) Get(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error) {
	query := `SELECT ` + embeddingColumns + ` FROM article_embeddings WHERE article_id = $1`

	emb, err := scanEmbedding(repo.db.QueryRowContext(ctx, query, articleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return emb, nil
}

// ListByWorkspace returns the workspace's embeddings of one model version ordered by article id.
func (repo *EmbeddingRepo) ListByWorkspace(ctx context.Context, workspaceID, modelVersion string) ([]*entity.ArticleEmbedding, error) {
	query := `SELECT ` + embeddingColumns + `
FROM article_embeddings
WHERE workspace_id = $1 AND model_version = $2
ORDER BY article_id`

	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_embeddings", time.Since(start)) }()

	rows, err := repo.db.QueryContext(ctx, query, workspaceID, modelVersion)
	if err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	embeddings := make([]*entity.ArticleEmbedding, 0)
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByWorkspace: Scan: %w", err)
		}
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	return embeddings, nil
}

// ListArticleIDs returns the ids of every embedded article of the workspace.
func (repo *EmbeddingRepo) ListArticleIDs(ctx context.Context, workspaceID string) ([]string, error) {
	const query = `SELECT article_id FROM article_embeddings WHERE workspace_id = $1 ORDER BY article_id`

	rows, err := repo.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListArticleIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListArticleIDs: Scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListArticleIDs: %w", err)
	}
	return ids, nil
}

// Delete removes an article's embedding and returns the number of deleted rows.
func (repo *EmbeddingRepo) Delete(ctx context.Context, articleID string) (int64, error) {
	const query = `DELETE FROM article_embeddings WHERE article_id = $1`

	result, err := repo.db.ExecContext(ctx, query, articleID)
	if err != nil {
		return 0, fmt.Errorf("Delete: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Delete: RowsAffected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(row rowScanner) (*entity.ArticleEmbedding, error) {
	emb := &entity.ArticleEmbedding{}
	var vector pgvector.Vector
	var keywords []byte

	if err := row.Scan(
		&emb.ArticleID,
		&emb.WorkspaceID,
		&emb.ModelVersion,
		&vector,
		&emb.ContentHash,
		&keywords,
		&emb.ComputedAt,
	); err != nil {
		return nil, err
	}

	emb.Vector = vector.Slice()
	kw, err := decodeKeywords(keywords)
	if err != nil {
		return nil, err
	}
	emb.TargetKeywords = kw
	return emb, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(b), nil
}

func decodeKeywords(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil, nil
	}
	return keywords, nil
}
