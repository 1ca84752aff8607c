package postgres

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"semantic-linker/internal/domain/entity"
)

// psql is the statement builder shared by the adapters; PostgreSQL uses $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const linkEdgeColumns = `id, workspace_id, from_article_id, to_article_id, from_post_id, to_post_id, ` +
	`anchor_text, similarity_score, link_type, is_applied, applied_at, created_at, updated_at, retired_at`

// LinkEdgeQueryBuilder builds filtered link edge listings.
type LinkEdgeQueryBuilder struct{}

// NewLinkEdgeQueryBuilder creates a new query builder instance.
func NewLinkEdgeQueryBuilder() *LinkEdgeQueryBuilder {
	return &LinkEdgeQueryBuilder{}
}

// BuildListQuery returns the SELECT statement and arguments listing a workspace's edges
// that pass filter, ordered by (from_article_id, to_article_id).
func (qb *LinkEdgeQueryBuilder) BuildListQuery(workspaceID string, filter entity.EdgeFilter) (string, []any, error) {
	q := psql.Select(linkEdgeColumns).
		From("link_edges").
		Where(sq.Eq{"workspace_id": workspaceID})

	switch filter {
	case entity.FilterApplied:
		q = q.Where(sq.Eq{"is_applied": true, "retired_at": nil})
	case entity.FilterCandidate:
		q = q.Where(sq.Eq{"is_applied": false, "retired_at": nil})
	case entity.FilterRetired:
		q = q.Where(sq.NotEq{"retired_at": nil})
	case entity.FilterAll, "":
	default:
		return "", nil, fmt.Errorf("BuildListQuery: unknown filter %q: %w", filter, entity.ErrInvalidInput)
	}

	return q.OrderBy("from_article_id", "to_article_id").ToSql()
}
