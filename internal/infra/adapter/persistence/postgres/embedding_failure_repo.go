package postgres

import (
	"context"
	"fmt"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

// EmbeddingFailureRepo implements EmbeddingFailureRepository for PostgreSQL.
type EmbeddingFailureRepo struct {
	db Querier
}

// NewEmbeddingFailureRepo creates a new PostgreSQL-based EmbeddingFailureRepository.
func NewEmbeddingFailureRepo(db Querier) repository.EmbeddingFailureRepository {
	return &EmbeddingFailureRepo{db: db}
}

func (repo *EmbeddingFailureRepo) Record(ctx context.Context, f *entity.EmbeddingFailure) error {
	if f == nil || f.ArticleID == "" {
		return fmt.Errorf("Record: %w", &entity.ValidationError{Field: "ArticleID", Message: "article id is required"})
	}

	const query = `
INSERT INTO embedding_failures (article_id, workspace_id, content_hash, reason, failed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (article_id)
DO UPDATE SET
	workspace_id = EXCLUDED.workspace_id,
	content_hash = EXCLUDED.content_hash,
	reason = EXCLUDED.reason,
	failed_at = EXCLUDED.failed_at`

	if _, err := repo.db.ExecContext(ctx, query, f.ArticleID, f.WorkspaceID, f.ContentHash, f.Reason, f.FailedAt); err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (repo *EmbeddingFailureRepo) ListByWorkspace(ctx context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error) {
	const query = `
SELECT article_id, workspace_id, content_hash, reason, failed_at
FROM embedding_failures
WHERE workspace_id = $1`

	rows, err := repo.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	failures := make(map[string]*entity.EmbeddingFailure)
	for rows.Next() {
		f := &entity.EmbeddingFailure{}
		if err := rows.Scan(&f.ArticleID, &f.WorkspaceID, &f.ContentHash, &f.Reason, &f.FailedAt); err != nil {
			return nil, fmt.Errorf("ListByWorkspace: Scan: %w", err)
		}
		failures[f.ArticleID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	return failures, nil
}

func (repo *EmbeddingFailureRepo) Clear(ctx context.Context, articleID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM embedding_failures WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}
