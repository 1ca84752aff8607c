package repository

import (
	"context"

	"semantic-linker/internal/domain/entity"
)

// EmbeddingRepository persists article embeddings. It performs no dimensionality
// checks; those belong to the embedding store that owns the model registry.
type EmbeddingRepository interface {
	// Upsert creates or replaces the embedding of emb.ArticleID.
	// There is at most one embedding per article id.
	Upsert(ctx context.Context, emb *entity.ArticleEmbedding) error

	// Get returns the embedding of an article regardless of its model version.
	// Returns entity.ErrNotFound when the article has no embedding.
	Get(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error)

	// ListByWorkspace returns every embedding of the workspace produced by modelVersion,
	// ordered by article id. Returns an empty slice (not nil) when none exist.
	ListByWorkspace(ctx context.Context, workspaceID, modelVersion string) ([]*entity.ArticleEmbedding, error)

	// ListArticleIDs returns the ids of every embedded article of the workspace, any model version.
	ListArticleIDs(ctx context.Context, workspaceID string) ([]string, error)

	// Delete removes an article's embedding and returns the number of removed rows.
	// Deleting a missing embedding is not an error.
	Delete(ctx context.Context, articleID string) (int64, error)
}

// EmbeddingFailureRepository stores permanent embedding failures keyed by article id.
type EmbeddingFailureRepository interface {
	// Record creates or replaces the failure record of f.ArticleID.
	Record(ctx context.Context, f *entity.EmbeddingFailure) error

	// ListByWorkspace returns the workspace's failure records keyed by article id.
	ListByWorkspace(ctx context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error)

	// Clear removes the failure record of an article. Clearing a missing record is not an error.
	Clear(ctx context.Context, articleID string) error
}
