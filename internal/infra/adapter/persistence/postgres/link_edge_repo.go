package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/metrics"
	"semantic-linker/internal/repository"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LinkEdgeRepo implements the LinkMap interface for PostgreSQL.
type LinkEdgeRepo struct {
	db           *sql.DB
	queryBuilder *LinkEdgeQueryBuilder
	now          func() time.Time
	newID        func() string
}

// NewLinkEdgeRepo creates a new PostgreSQL-based LinkMap.
func NewLinkEdgeRepo(db *sql.DB) repository.LinkMap {
	return &LinkEdgeRepo{
		db:           db,
		queryBuilder: NewLinkEdgeQueryBuilder(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// The conflict clause implements the merge rules: a live applied edge keeps its anchor
// and type, a retired edge is revived as a fresh candidate
// that keeps its applied_at as history, and the WHERE clause stops a
// string_match proposal from touching a semantic row (no row is returned in that case).
const upsertCandidateQuery = `
INSERT INTO link_edges (id, workspace_id, from_article_id, to_article_id, from_post_id, to_post_id,
	anchor_text, similarity_score, link_type, is_applied, created_at, updated_at)
VALUES ($1, $2, $3, $4, $3, $4, $5, $6, $7, FALSE, $8, $8)
ON CONFLICT (from_article_id, to_article_id)
DO UPDATE SET
	similarity_score = EXCLUDED.similarity_score,
	anchor_text = CASE WHEN link_edges.is_applied AND link_edges.retired_at IS NULL
		THEN link_edges.anchor_text ELSE EXCLUDED.anchor_text END,
	link_type = CASE WHEN link_edges.is_applied AND link_edges.retired_at IS NULL
		THEN link_edges.link_type ELSE EXCLUDED.link_type END,
	from_post_id = CASE WHEN link_edges.retired_at IS NULL
		THEN link_edges.from_post_id ELSE EXCLUDED.from_post_id END,
	to_post_id = CASE WHEN link_edges.retired_at IS NULL
		THEN link_edges.to_post_id ELSE EXCLUDED.to_post_id END,
	is_applied = link_edges.is_applied AND link_edges.retired_at IS NULL,
	retired_at = NULL,
	updated_at = EXCLUDED.updated_at
WHERE EXCLUDED.link_type = 'semantic' OR link_edges.link_type = 'string_match'
RETURNING ` + linkEdgeColumns

// UpsertCandidate inserts or merges a candidate edge.
func (repo *LinkEdgeRepo) UpsertCandidate(ctx context.Context, c entity.CandidateEdge) (*entity.LinkEdge, error) {
	edge, _, err := repo.upsert(ctx, repo.db, c)
	if err != nil {
		return nil, fmt.Errorf("UpsertCandidate: %w", err)
	}
	return edge, nil
}

// upsert reports changed=false when a semantic row blocked a string_match proposal.
func (repo *LinkEdgeRepo) upsert(ctx context.Context, ex execer, c entity.CandidateEdge) (*entity.LinkEdge, bool, error) {
	if err := c.Validate(); err != nil {
		return nil, false, err
	}

	edge, err := scanLinkEdge(ex.QueryRowContext(ctx, upsertCandidateQuery,
		repo.newID(),
		c.WorkspaceID,
		c.FromArticleID,
		c.ToArticleID,
		c.AnchorText,
		c.SimilarityScore,
		string(c.LinkType),
		repo.now().UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := getByPair(ctx, ex, c.FromArticleID, c.ToArticleID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return edge, true, nil
}

// Get returns an edge by id.
func (repo *LinkEdgeRepo) Get(ctx context.Context, edgeID string) (*entity.LinkEdge, error) {
	edge, err := scanLinkEdge(repo.db.QueryRowContext(ctx,
		`SELECT `+linkEdgeColumns+` FROM link_edges WHERE id = $1`, edgeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return edge, nil
}

func getByPair(ctx context.Context, ex execer, fromID, toID string) (*entity.LinkEdge, error) {
	edge, err := scanLinkEdge(ex.QueryRowContext(ctx,
		`SELECT `+linkEdgeColumns+` FROM link_edges WHERE from_article_id = $1 AND to_article_id = $2`, fromID, toID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return edge, err
}

// MarkApplied flags an edge as rendered into published content.
func (repo *LinkEdgeRepo) MarkApplied(ctx context.Context, edgeID string, appliedAt time.Time) error {
	const query = `
UPDATE link_edges
SET applied_at = CASE WHEN is_applied THEN COALESCE(applied_at, $2) ELSE $2 END,
	is_applied = TRUE, updated_at = $3
WHERE id = $1 AND retired_at IS NULL`

	res, err := repo.db.ExecContext(ctx, query, edgeID, appliedAt.UTC(), repo.now().UTC())
	if err != nil {
		return fmt.Errorf("MarkApplied: %w", err)
	}
	if err := repo.requireLiveRow(ctx, res, edgeID); err != nil {
		return fmt.Errorf("MarkApplied: %w", err)
	}
	return nil
}

// PromoteToPosts replaces the edge's post ids with published post ids.
func (repo *LinkEdgeRepo) PromoteToPosts(ctx context.Context, edgeID, fromPostID, toPostID string) error {
	if fromPostID == "" || toPostID == "" || fromPostID == toPostID {
		return fmt.Errorf("PromoteToPosts: %w", &entity.ValidationError{Field: "PostID", Message: "two distinct post ids are required"})
	}

	const query = `
UPDATE link_edges
SET from_post_id = $2, to_post_id = $3, updated_at = $4
WHERE id = $1 AND retired_at IS NULL`

	res, err := repo.db.ExecContext(ctx, query, edgeID, fromPostID, toPostID, repo.now().UTC())
	if err != nil {
		return fmt.Errorf("PromoteToPosts: %w", err)
	}
	if err := repo.requireLiveRow(ctx, res, edgeID); err != nil {
		return fmt.Errorf("PromoteToPosts: %w", err)
	}
	return nil
}

// requireLiveRow turns a zero-row update into ErrNotFound or ErrEdgeRetired.
func (repo *LinkEdgeRepo) requireLiveRow(ctx context.Context, res sql.Result, edgeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var retiredAt sql.NullTime
	err = repo.db.QueryRowContext(ctx, `SELECT retired_at FROM link_edges WHERE id = $1`, edgeID).Scan(&retiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrNotFound
	}
	if err != nil {
		return err
	}
	return entity.ErrEdgeRetired
}

// Retire soft-retires an edge, keeping the first retirement timestamp.
func (repo *LinkEdgeRepo) Retire(ctx context.Context, edgeID string, at time.Time) error {
	const query = `
UPDATE link_edges
SET retired_at = COALESCE(retired_at, $2), updated_at = $2
WHERE id = $1`

	res, err := repo.db.ExecContext(ctx, query, edgeID, at.UTC())
	if err != nil {
		return fmt.Errorf("Retire: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Retire: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// ListOutbound returns the non-retired edges leaving an article.
func (repo *LinkEdgeRepo) ListOutbound(ctx context.Context, fromArticleID string) ([]*entity.LinkEdge, error) {
	query := `SELECT ` + linkEdgeColumns + `
FROM link_edges
WHERE from_article_id = $1 AND retired_at IS NULL
ORDER BY to_article_id`

	edges, err := repo.queryEdges(ctx, query, fromArticleID)
	if err != nil {
		return nil, fmt.Errorf("ListOutbound: %w", err)
	}
	return edges, nil
}

// ListForWorkspace returns the workspace's edges passing filter.
func (repo *LinkEdgeRepo) ListForWorkspace(ctx context.Context, workspaceID string, filter entity.EdgeFilter) ([]*entity.LinkEdge, error) {
	query, args, err := repo.queryBuilder.BuildListQuery(workspaceID, filter)
	if err != nil {
		return nil, fmt.Errorf("ListForWorkspace: %w", err)
	}

	edges, err := repo.queryEdges(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListForWorkspace: %w", err)
	}
	return edges, nil
}

func (repo *LinkEdgeRepo) queryEdges(ctx context.Context, query string, args ...any) ([]*entity.LinkEdge, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*entity.LinkEdge, 0)
	for rows.Next() {
		edge, err := scanLinkEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("Scan: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}

// ApplyArticleEdgeSet commits one source article's mutations in a single transaction.
func (repo *LinkEdgeRepo) ApplyArticleEdgeSet(ctx context.Context, set entity.ArticleEdgeSet) (entity.EdgeSetResult, error) {
	var result entity.EdgeSetResult
	if set.IsEmpty() {
		return result, nil
	}
	for _, c := range set.Upserts {
		if c.FromArticleID != set.FromArticleID || c.WorkspaceID != set.WorkspaceID {
			return result, fmt.Errorf("ApplyArticleEdgeSet: %w", &entity.ValidationError{
				Field: "Upserts", Message: "candidate does not belong to the edge set's source article",
			})
		}
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("apply_edge_set", time.Since(start)) }()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("ApplyArticleEdgeSet: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range set.Upserts {
		_, changed, err := repo.upsert(ctx, tx, c)
		if err != nil {
			return entity.EdgeSetResult{}, fmt.Errorf("ApplyArticleEdgeSet: upsert %s->%s: %w", c.FromArticleID, c.ToArticleID, err)
		}
		if changed {
			result.Upserted++
		}
	}

	for _, id := range set.DeleteIDs {
		n, err := execCount(ctx, tx, `DELETE FROM link_edges WHERE id = $1 AND is_applied = FALSE`, id)
		if err != nil {
			return entity.EdgeSetResult{}, fmt.Errorf("ApplyArticleEdgeSet: delete %s: %w", id, err)
		}
		result.Deleted += int(n)
	}

	retiredAt := set.RetiredAt
	if retiredAt.IsZero() {
		retiredAt = repo.now()
	}
	for _, id := range set.RetireIDs {
		n, err := execCount(ctx, tx,
			`UPDATE link_edges SET retired_at = $2, updated_at = $2 WHERE id = $1 AND retired_at IS NULL`,
			id, retiredAt.UTC())
		if err != nil {
			return entity.EdgeSetResult{}, fmt.Errorf("ApplyArticleEdgeSet: retire %s: %w", id, err)
		}
		result.Retired += int(n)
	}

	if err := tx.Commit(); err != nil {
		return entity.EdgeSetResult{}, fmt.Errorf("ApplyArticleEdgeSet: Commit: %w", err)
	}
	return result, nil
}

// DeleteCandidatesTouching removes non-applied edges that start or end at articleID.
func (repo *LinkEdgeRepo) DeleteCandidatesTouching(ctx context.Context, workspaceID, articleID string) (int64, error) {
	const query = `
DELETE FROM link_edges
WHERE workspace_id = $1 AND is_applied = FALSE AND (from_article_id = $2 OR to_article_id = $2)`

	n, err := execCount(ctx, repo.db, query, workspaceID, articleID)
	if err != nil {
		return 0, fmt.Errorf("DeleteCandidatesTouching: %w", err)
	}
	return n, nil
}

// RetireTouching retires live applied edges that start or end at articleID.
func (repo *LinkEdgeRepo) RetireTouching(ctx context.Context, workspaceID, articleID string, at time.Time) (int64, error) {
	const query = `
UPDATE link_edges
SET retired_at = $3, updated_at = $3
WHERE workspace_id = $1 AND is_applied = TRUE AND retired_at IS NULL
	AND (from_article_id = $2 OR to_article_id = $2)`

	n, err := execCount(ctx, repo.db, query, workspaceID, articleID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("RetireTouching: %w", err)
	}
	return n, nil
}

func execCount(ctx context.Context, ex execer, query string, args ...any) (int64, error) {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("RowsAffected: %w", err)
	}
	return n, nil
}

func scanLinkEdge(row rowScanner) (*entity.LinkEdge, error) {
	edge := &entity.LinkEdge{}
	var linkType string
	var appliedAt, retiredAt sql.NullTime

	if err := row.Scan(
		&edge.ID,
		&edge.WorkspaceID,
		&edge.FromArticleID,
		&edge.ToArticleID,
		&edge.FromPostID,
		&edge.ToPostID,
		&edge.AnchorText,
		&edge.SimilarityScore,
		&linkType,
		&edge.IsApplied,
		&appliedAt,
		&edge.CreatedAt,
		&edge.UpdatedAt,
		&retiredAt,
	); err != nil {
		return nil, err
	}

	edge.LinkType = entity.LinkType(linkType)
	if appliedAt.Valid {
		t := appliedAt.Time
		edge.AppliedAt = &t
	}
	if retiredAt.Valid {
		t := retiredAt.Time
		edge.RetiredAt = &t
	}
	return edge, nil
}
