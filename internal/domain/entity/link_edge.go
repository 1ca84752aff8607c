package entity

import (
	"strings"
	"time"
)

// LinkType identifies the strategy that proposed a link edge.
type LinkType string

const (
	LinkTypeSemantic    LinkType = "semantic"
	LinkTypeStringMatch LinkType = "string_match"
)

// IsValid reports whether the link type is a known strategy.
func (t LinkType) IsValid() bool {
	return t == LinkTypeSemantic || t == LinkTypeStringMatch
}

// LinkEdge is a persisted proposed or applied link from one article to another.
//
// FromArticleID/ToArticleID identify the edge for reconciliation and never change.
// FromPostID/ToPostID equal the article ids while the edge is a candidate and may be
// promoted to published post ids when the edge is applied.
// Applied edges are never deleted by reconciliation, only retired.
// AppliedAt is the time of the latest application; a revived edge keeps it as
// history until it is applied again.
type LinkEdge struct {
	ID              string
	WorkspaceID     string
	FromArticleID   string
	ToArticleID     string
	FromPostID      string
	ToPostID        string
	AnchorText      string
	SimilarityScore float64
	LinkType        LinkType
	IsApplied       bool
	AppliedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	RetiredAt       *time.Time
}

// IsRetired reports whether the edge has been soft-retired.
func (e *LinkEdge) IsRetired() bool {
	return e.RetiredAt != nil
}

// IsLiveApplied reports whether the edge is applied and not retired.
// Only such edges count against an article's link budget.
func (e *LinkEdge) IsLiveApplied() bool {
	return e.IsApplied && e.RetiredAt == nil
}

// IsCandidate reports whether the edge is a non-retired, not-yet-applied proposal.
func (e *LinkEdge) IsCandidate() bool {
	return !e.IsApplied && e.RetiredAt == nil
}

// CandidateEdge is the input of LinkMap.UpsertCandidate.
type CandidateEdge struct {
	WorkspaceID     string
	FromArticleID   string
	ToArticleID     string
	AnchorText      string
	SimilarityScore float64
	LinkType        LinkType
}

// Validate checks the candidate before it is written.
func (c *CandidateEdge) Validate() error {
	if c.WorkspaceID == "" {
		return &ValidationError{Field: "WorkspaceID", Message: "workspace id is required"}
	}
	if c.FromArticleID == "" || c.ToArticleID == "" {
		return &ValidationError{Field: "FromArticleID", Message: "both endpoints are required"}
	}
	if c.FromArticleID == c.ToArticleID {
		return &ValidationError{Field: "ToArticleID", Message: "an article cannot link to itself"}
	}
	if strings.TrimSpace(c.AnchorText) == "" {
		return &ValidationError{Field: "AnchorText", Message: "anchor text is required"}
	}
	if c.SimilarityScore < -1 || c.SimilarityScore > 1 {
		return &ValidationError{Field: "SimilarityScore", Message: "score must be within [-1, 1]"}
	}
	if !c.LinkType.IsValid() {
		return &ValidationError{Field: "LinkType", Message: "unknown link type: " + string(c.LinkType)}
	}
	return nil
}

// EdgeFilter selects which edges ListForWorkspace returns.
type EdgeFilter string

const (
	// FilterApplied returns live applied edges.
	FilterApplied EdgeFilter = "applied"
	// FilterCandidate returns live, not-yet-applied edges.
	FilterCandidate EdgeFilter = "candidate"
	// FilterRetired returns retired edges.
	FilterRetired EdgeFilter = "retired"
	// FilterAll returns every edge.
	FilterAll EdgeFilter = "all"
)

// ParseEdgeFilter parses a filter name, defaulting to FilterAll for an empty string.
func ParseEdgeFilter(s string) (EdgeFilter, error) {
	switch f := EdgeFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterApplied, FilterCandidate, FilterRetired, FilterAll:
		return f, nil
	default:
		return "", &ValidationError{Field: "filter", Message: "unknown edge filter: " + s}
	}
}

// Matches reports whether the edge passes the filter.
func (f EdgeFilter) Matches(e *LinkEdge) bool {
	switch f {
	case FilterApplied:
		return e.IsLiveApplied()
	case FilterCandidate:
		return e.IsCandidate()
	case FilterRetired:
		return e.IsRetired()
	default:
		return true
	}
}

// ArticleEdgeSet groups every LinkMap mutation for one source article so that
// adapters can commit them atomically.
type ArticleEdgeSet struct {
	WorkspaceID   string
	FromArticleID string
	Upserts       []CandidateEdge
	DeleteIDs     []string
	RetireIDs     []string
	RetiredAt     time.Time
}

// IsEmpty reports whether the set carries no mutation.
func (s *ArticleEdgeSet) IsEmpty() bool {
	return len(s.Upserts) == 0 && len(s.DeleteIDs) == 0 && len(s.RetireIDs) == 0
}

// EdgeSetResult counts what ApplyArticleEdgeSet actually changed.
type EdgeSetResult struct {
	Upserted int
	Deleted  int
	Retired  int
}

// Add accumulates another result.
func (r *EdgeSetResult) Add(o EdgeSetResult) {
	r.Upserted += o.Upserted
	r.Deleted += o.Deleted
	r.Retired += o.Retired
}
