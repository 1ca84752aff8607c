package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

type pairKey struct{ from, to string }

// LinkMap is an in-memory LinkMap with the same merge rules as the PostgreSQL adapter.
// It also counts write calls so tests can assert that a pass performed no mutations.
type LinkMap struct {
	mu     sync.RWMutex
	byID   map[string]*entity.LinkEdge
	byPair map[pairKey]string
	now    func() time.Time
	writes int
}

// NewLinkMap creates an empty in-memory LinkMap.
func NewLinkMap() *LinkMap {
	return &LinkMap{
		byID:   make(map[string]*entity.LinkEdge),
		byPair: make(map[pairKey]string),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for created_at/updated_at.
func (m *LinkMap) WithClock(now func() time.Time) *LinkMap {
	m.now = now
	return m
}

// Writes returns the number of mutations performed since creation.
func (m *LinkMap) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

var _ repository.LinkMap = (*LinkMap)(nil)

func (m *LinkMap) UpsertCandidate(_ context.Context, c entity.CandidateEdge) (*entity.LinkEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, _, err := m.upsertLocked(c)
	if err != nil {
		return nil, fmt.Errorf("UpsertCandidate: %w", err)
	}
	return copyEdge(edge), nil
}

func (m *LinkMap) upsertLocked(c entity.CandidateEdge) (*entity.LinkEdge, bool, error) {
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	now := m.now().UTC()
	key := pairKey{c.FromArticleID, c.ToArticleID}

	id, ok := m.byPair[key]
	if !ok {
		edge := &entity.LinkEdge{
			ID:              uuid.NewString(),
			WorkspaceID:     c.WorkspaceID,
			FromArticleID:   c.FromArticleID,
			ToArticleID:     c.ToArticleID,
			FromPostID:      c.FromArticleID,
			ToPostID:        c.ToArticleID,
			AnchorText:      c.AnchorText,
			SimilarityScore: c.SimilarityScore,
			LinkType:        c.LinkType,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		m.byID[edge.ID] = edge
		m.byPair[key] = edge.ID
		m.writes++
		return edge, true, nil
	}

	edge := m.byID[id]
	if c.LinkType == entity.LinkTypeStringMatch && edge.LinkType == entity.LinkTypeSemantic {
		return edge, false, nil
	}

	switch {
	case edge.IsLiveApplied():
		edge.SimilarityScore = c.SimilarityScore
	case edge.IsRetired():
		edge.AnchorText = c.AnchorText
		edge.SimilarityScore = c.SimilarityScore
		edge.LinkType = c.LinkType
		edge.FromPostID = c.FromArticleID
		edge.ToPostID = c.ToArticleID
		edge.IsApplied = false
		edge.RetiredAt = nil
	default:
		edge.AnchorText = c.AnchorText
		edge.SimilarityScore = c.SimilarityScore
		edge.LinkType = c.LinkType
	}
	edge.UpdatedAt = now
	m.writes++
	return edge, true, nil
}

func (m *LinkMap) Get(_ context.Context, edgeID string) (*entity.LinkEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	edge, ok := m.byID[edgeID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return copyEdge(edge), nil
}

func (m *LinkMap) MarkApplied(_ context.Context, edgeID string, appliedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, err := m.liveLocked(edgeID)
	if err != nil {
		return fmt.Errorf("MarkApplied: %w", err)
	}
	if !edge.IsApplied || edge.AppliedAt == nil {
		t := appliedAt.UTC()
		edge.AppliedAt = &t
	}
	edge.IsApplied = true
	edge.UpdatedAt = m.now().UTC()
	m.writes++
	return nil
}

func (m *LinkMap) PromoteToPosts(_ context.Context, edgeID, fromPostID, toPostID string) error {
	if fromPostID == "" || toPostID == "" || fromPostID == toPostID {
		return fmt.Errorf("PromoteToPosts: %w", &entity.ValidationError{Field: "PostID", Message: "two distinct post ids are required"})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, err := m.liveLocked(edgeID)
	if err != nil {
		return fmt.Errorf("PromoteToPosts: %w", err)
	}
	edge.FromPostID = fromPostID
	edge.ToPostID = toPostID
	edge.UpdatedAt = m.now().UTC()
	m.writes++
	return nil
}

func (m *LinkMap) liveLocked(edgeID string) (*entity.LinkEdge, error) {
	edge, ok := m.byID[edgeID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if edge.IsRetired() {
		return nil, entity.ErrEdgeRetired
	}
	return edge, nil
}

func (m *LinkMap) Retire(_ context.Context, edgeID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, ok := m.byID[edgeID]
	if !ok {
		return entity.ErrNotFound
	}
	m.retireLocked(edge, at)
	return nil
}

func (m *LinkMap) retireLocked(edge *entity.LinkEdge, at time.Time) bool {
	if edge.IsRetired() {
		return false
	}
	t := at.UTC()
	edge.RetiredAt = &t
	edge.UpdatedAt = t
	m.writes++
	return true
}

func (m *LinkMap) ListOutbound(_ context.Context, fromArticleID string) ([]*entity.LinkEdge, error) {
	return m.list(func(e *entity.LinkEdge) bool {
		return e.FromArticleID == fromArticleID && !e.IsRetired()
	}), nil
}

func (m *LinkMap) ListForWorkspace(_ context.Context, workspaceID string, filter entity.EdgeFilter) ([]*entity.LinkEdge, error) {
	switch filter {
	case entity.FilterApplied, entity.FilterCandidate, entity.FilterRetired, entity.FilterAll, "":
	default:
		return nil, fmt.Errorf("ListForWorkspace: unknown filter %q: %w", filter, entity.ErrInvalidInput)
	}
	return m.list(func(e *entity.LinkEdge) bool {
		return e.WorkspaceID == workspaceID && filter.Matches(e)
	}), nil
}

func (m *LinkMap) list(keep func(*entity.LinkEdge) bool) []*entity.LinkEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entity.LinkEdge, 0)
	for _, e := range m.byID {
		if keep(e) {
			out = append(out, copyEdge(e))
		}
	}
	slices.SortFunc(out, func(a, b *entity.LinkEdge) int {
		if c := strings.Compare(a.FromArticleID, b.FromArticleID); c != 0 {
			return c
		}
		return strings.Compare(a.ToArticleID, b.ToArticleID)
	})
	return out
}

// ApplyArticleEdgeSet validates the whole set before mutating, so a rejected set leaves no trace.
func (m *LinkMap) ApplyArticleEdgeSet(_ context.Context, set entity.ArticleEdgeSet) (entity.EdgeSetResult, error) {
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
		if err := c.Validate(); err != nil {
			return result, fmt.Errorf("ApplyArticleEdgeSet: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range set.Upserts {
		_, changed, err := m.upsertLocked(c)
		if err != nil {
			return result, fmt.Errorf("ApplyArticleEdgeSet: %w", err)
		}
		if changed {
			result.Upserted++
		}
	}
	for _, id := range set.DeleteIDs {
		if edge, ok := m.byID[id]; ok && !edge.IsApplied {
			m.deleteLocked(edge)
			result.Deleted++
		}
	}
	at := set.RetiredAt
	if at.IsZero() {
		at = m.now()
	}
	for _, id := range set.RetireIDs {
		if edge, ok := m.byID[id]; ok && m.retireLocked(edge, at) {
			result.Retired++
		}
	}
	return result, nil
}

func (m *LinkMap) deleteLocked(edge *entity.LinkEdge) {
	delete(m.byID, edge.ID)
	delete(m.byPair, pairKey{edge.FromArticleID, edge.ToArticleID})
	m.writes++
}

func (m *LinkMap) DeleteCandidatesTouching(_ context.Context, workspaceID, articleID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, edge := range m.byID {
		if edge.WorkspaceID == workspaceID && !edge.IsApplied && touches(edge, articleID) {
			m.deleteLocked(edge)
			n++
		}
	}
	return n, nil
}

func (m *LinkMap) RetireTouching(_ context.Context, workspaceID, articleID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, edge := range m.byID {
		if edge.WorkspaceID == workspaceID && edge.IsApplied && touches(edge, articleID) && m.retireLocked(edge, at) {
			n++
		}
	}
	return n, nil
}

func touches(e *entity.LinkEdge, articleID string) bool {
	return e.FromArticleID == articleID || e.ToArticleID == articleID
}

func copyEdge(e *entity.LinkEdge) *entity.LinkEdge {
	c := *e
	if e.AppliedAt != nil {
		t := *e.AppliedAt
		c.AppliedAt = &t
	}
	if e.RetiredAt != nil {
		t := *e.RetiredAt
		c.RetiredAt = &t
	}
	return &c
}
