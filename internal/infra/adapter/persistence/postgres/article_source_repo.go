package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

// DefaultArticlesTable is the table the article store exposes to the engine.
const DefaultArticlesTable = "articles"

// ArticleSourceRepo reads article snapshots from the article store's table.
type ArticleSourceRepo struct {
	db    Querier
	table string
}

// NewArticleSourceRepo creates an ArticleSource over table (DefaultArticlesTable when empty).
func NewArticleSourceRepo(db Querier, table string) repository.ArticleSource {
	if table == "" {
		table = DefaultArticlesTable
	}
	return &ArticleSourceRepo{db: db, table: table}
}

func (repo *ArticleSourceRepo) ListWorkspaces(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("DISTINCT workspace_id").
		From(repo.table).
		OrderBy("workspace_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListWorkspaces: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListWorkspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	workspaces := make([]string, 0)
	for rows.Next() {
		var ws string
		if err := rows.Scan(&ws); err != nil {
			return nil, fmt.Errorf("ListWorkspaces: Scan: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWorkspaces: %w", err)
	}
	return workspaces, nil
}

func (repo *ArticleSourceRepo) ListWorkspaceArticles(ctx context.Context, workspaceID string) ([]*entity.Article, error) {
	query, args, err := psql.Select(
		"id", "workspace_id", "title", "content", "content_hash", "target_keywords", "published", "updated_at",
	).
		From(repo.table).
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListWorkspaceArticles: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListWorkspaceArticles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 64)
	for rows.Next() {
		a := &entity.Article{}
		var keywords []byte
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.Title, &a.Content, &a.ContentHash,
			&keywords, &a.Published, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListWorkspaceArticles: Scan: %w", err)
		}
		if a.TargetKeywords, err = decodeKeywords(keywords); err != nil {
			return nil, fmt.Errorf("ListWorkspaceArticles: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWorkspaceArticles: %w", err)
	}
	return articles, nil
}
