package repository

import (
	"context"
	"time"

	"semantic-linker/internal/domain/entity"
)

// LinkMap is the persisted set of proposed and applied link edges.
// Edges are unique per (from, to) pair; applied edges are retired, never deleted.
type LinkMap interface {
	// UpsertCandidate inserts the candidate or merges it into the existing edge for the pair.
	// Applied edges only get their similarity score refreshed. A string_match candidate
	// never overwrites a semantic edge; in that case the existing edge is returned unchanged.
	// A retired edge that is proposed again becomes a fresh candidate.
	UpsertCandidate(ctx context.Context, c entity.CandidateEdge) (*entity.LinkEdge, error)

	// Get returns an edge by id or entity.ErrNotFound.
	Get(ctx context.Context, edgeID string) (*entity.LinkEdge, error)

	// MarkApplied records that the publisher rendered the edge into published content.
	// Returns entity.ErrNotFound for an unknown edge and entity.ErrEdgeRetired for a retired one.
	// Marking an already applied edge keeps its original applied_at.
	MarkApplied(ctx context.Context, edgeID string, appliedAt time.Time) error

	// PromoteToPosts replaces the edge's post ids with the ids of the published posts.
	PromoteToPosts(ctx context.Context, edgeID, fromPostID, toPostID string) error

	// Retire soft-retires an edge. Retiring an already retired edge keeps the first timestamp.
	// Returns entity.ErrNotFound for an unknown edge.
	Retire(ctx context.Context, edgeID string, at time.Time) error

	// ListOutbound returns the non-retired edges whose source is fromArticleID, ordered by target id.
	ListOutbound(ctx context.Context, fromArticleID string) ([]*entity.LinkEdge, error)

	// ListForWorkspace returns the workspace's edges passing filter, ordered by (from, to).
	ListForWorkspace(ctx context.Context, workspaceID string, filter entity.EdgeFilter) ([]*entity.LinkEdge, error)

	// ApplyArticleEdgeSet commits every mutation of one source article atomically.
	// Deletions only remove non-applied edges.
	ApplyArticleEdgeSet(ctx context.Context, set entity.ArticleEdgeSet) (entity.EdgeSetResult, error)

	// DeleteCandidatesTouching removes non-applied edges whose source or target is articleID.
	DeleteCandidatesTouching(ctx context.Context, workspaceID, articleID string) (int64, error)

	// RetireTouching retires live applied edges whose source or target is articleID.
	RetireTouching(ctx context.Context, workspaceID, articleID string, at time.Time) (int64, error)
}
