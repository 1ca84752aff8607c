package repository

import (
	"context"

	"semantic-linker/internal/domain/entity"
)

// ArticleSource is the read-only view of the external article store.
type ArticleSource interface {
	// ListWorkspaces returns the ids of every workspace that owns at least one article.
	ListWorkspaces(ctx context.Context) ([]string, error)

	// ListWorkspaceArticles returns the articles of a workspace, including unpublished
	// ones, ordered by id.
	ListWorkspaceArticles(ctx context.Context, workspaceID string) ([]*entity.Article, error)
}
