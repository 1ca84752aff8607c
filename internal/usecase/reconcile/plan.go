package reconcile

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/usecase/linking"
	"semantic-linker/internal/usecase/similarity"
)

// recompute indexes the current embeddings of live, non-pending articles and
// ranks the neighbors of every indexed article.
func (j *Job) recompute(ctx context.Context, r *run) (similarity.Index, map[string][]entity.Neighbor, error) {
	current, err := j.store.ListCurrent(ctx, r.status.WorkspaceID)
	if err != nil {
		return nil, nil, err
	}
	snapshot := make([]*entity.ArticleEmbedding, 0, len(current))
	for _, e := range current {
		if r.isLive(e.ArticleID) && !r.isPending(e.ArticleID) {
			snapshot = append(snapshot, e)
		}
	}

	idx := j.index.BuildFrom(r.status.WorkspaceID, snapshot)
	neighbors, err := similarity.AllNeighbors(ctx, idx, r.cfg.NeighborK)
	if err != nil {
		return nil, nil, err
	}
	return idx, neighbors, nil
}

// plan computes the edge set of every source article. Sources are processed in
// ascending id order. Pending articles are left as they are: edges starting at
// them are untouched and edges pointing at them keep their place in the budget.
func (j *Job) plan(ctx context.Context, r *run, idx similarity.Index, neighbors map[string][]entity.Neighbor) ([]entity.ArticleEdgeSet, error) {
	ws := r.status.WorkspaceID
	edges, err := j.links.ListForWorkspace(ctx, ws, entity.FilterAll)
	if err != nil {
		return nil, err
	}

	bySource := make(map[string][]*entity.LinkEdge)
	retiredSemantic := make(map[string]map[string]struct{})
	for _, e := range edges {
		if e.WorkspaceID != ws {
			continue
		}
		if e.IsRetired() {
			if e.LinkType == entity.LinkTypeSemantic {
				if retiredSemantic[e.FromArticleID] == nil {
					retiredSemantic[e.FromArticleID] = make(map[string]struct{})
				}
				retiredSemantic[e.FromArticleID][e.ToArticleID] = struct{}{}
			}
			continue
		}
		bySource[e.FromArticleID] = append(bySource[e.FromArticleID], e)
	}

	sources := make([]string, 0, len(r.live)+len(bySource))
	for id := range r.live {
		sources = append(sources, id)
	}
	for id := range bySource {
		if !r.isLive(id) {
			sources = append(sources, id)
		}
	}
	slices.Sort(sources)

	anchors := make(map[string]linking.AnchorSource, len(r.live))
	var targets []linking.MatchTarget
	for _, id := range sources {
		a, ok := r.live[id]
		if !ok || r.isPending(id) {
			continue
		}
		anchors[id] = linking.AnchorSource{Keywords: a.TargetKeywords, Title: a.Title}
		if len(a.TargetKeywords) > 0 {
			targets = append(targets, linking.MatchTarget{ArticleID: id, Keywords: a.TargetKeywords})
		}
	}

	retiredAt := j.now().UTC()
	sets := make([]entity.ArticleEdgeSet, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.isPending(src) {
			continue
		}
		set := entity.ArticleEdgeSet{WorkspaceID: ws, FromArticleID: src, RetiredAt: retiredAt}
		if !r.isLive(src) {
			dropAll(&set, bySource[src])
		} else {
			p := sourcePlan{
				run:       r,
				idx:       idx,
				src:       r.live[src],
				existing:  bySource[src],
				neighbors: neighbors[src],
				anchors:   anchors,
				targets:   targets,
				retired:   retiredSemantic[src],
			}
			if err := p.build(&set); err != nil {
				return nil, fmt.Errorf("plan %s: %w", src, err)
			}
		}
		if !set.IsEmpty() {
			sets = append(sets, set)
		}
	}
	return sets, nil
}

// dropAll removes every edge of a source that left the corpus.
func dropAll(set *entity.ArticleEdgeSet, edges []*entity.LinkEdge) {
	for _, e := range edges {
		if e.IsApplied {
			set.RetireIDs = append(set.RetireIDs, e.ID)
		} else {
			set.DeleteIDs = append(set.DeleteIDs, e.ID)
		}
	}
}

// sourcePlan reconciles the outbound edges of one live, non-pending article.
type sourcePlan struct {
	run       *run
	idx       similarity.Index
	src       *entity.Article
	existing  []*entity.LinkEdge
	neighbors []entity.Neighbor
	anchors   map[string]linking.AnchorSource
	targets   []linking.MatchTarget
	// retired holds targets of retired semantic edges from this source.
	retired map[string]struct{}
}

func (p *sourcePlan) build(set *entity.ArticleEdgeSet) error {
	cfg := p.run.cfg
	var kept []*entity.LinkEdge
	candidates := make(map[string]*entity.LinkEdge)
	retired := maps.Clone(p.retired)
	if retired == nil {
		retired = make(map[string]struct{})
	}

	for _, e := range p.existing {
		to := e.ToArticleID
		switch {
		case !p.run.isLive(to):
			dropAll(set, []*entity.LinkEdge{e})
		case p.run.isPending(to):
			kept = append(kept, e)
		case e.IsApplied:
			score, ok := p.idx.Score(p.src.ID, to)
			if e.LinkType == entity.LinkTypeSemantic && (!ok || score < cfg.RetirementThreshold) {
				set.RetireIDs = append(set.RetireIDs, e.ID)
				retired[to] = struct{}{}
				continue
			}
			kept = append(kept, e)
			if ok && scoreChanged(e.SimilarityScore, score) {
				set.Upserts = append(set.Upserts, p.candidate(to, e.AnchorText, score, e.LinkType))
			}
		default:
			candidates[to] = e
		}
	}

	selected, err := linking.Select(linking.SelectInput{
		WorkspaceID:        p.src.WorkspaceID,
		SourceArticleID:    p.src.ID,
		Neighbors:          p.neighbors,
		Applied:            kept,
		MaxLinksPerArticle: cfg.MaxLinksPerArticle,
		MinSimilarity:      cfg.MinSimilarity,
		Anchors:            p.anchors,
	})
	if err != nil {
		return err
	}

	if cfg.StringMatchEnabled {
		matched, err := linking.MatchStrings(linking.MatchInput{
			SourceArticleID:    p.src.ID,
			SourceTitle:        p.src.Title,
			SourceContent:      p.src.Content,
			Targets:            p.matchTargets(candidates, retired, selected),
			Applied:            kept,
			Selected:           selected,
			MaxLinksPerArticle: cfg.MaxLinksPerArticle,
			Score: func(to string) (float64, bool) {
				return p.idx.Score(p.src.ID, to)
			},
		})
		if err != nil {
			return err
		}
		selected = append(selected, matched...)
	}

	chosen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		chosen[s.ToArticleID] = struct{}{}
		if ex, ok := candidates[s.ToArticleID]; ok &&
			ex.AnchorText == s.AnchorText && ex.LinkType == s.LinkType && !scoreChanged(ex.SimilarityScore, s.Score) {
			continue
		}
		set.Upserts = append(set.Upserts, p.candidate(s.ToArticleID, s.AnchorText, s.Score, s.LinkType))
	}

	stale := make([]string, 0)
	for to, e := range candidates {
		if _, ok := chosen[to]; !ok {
			stale = append(stale, e.ID)
		}
	}
	slices.Sort(stale)
	set.DeleteIDs = append(set.DeleteIDs, stale...)
	return nil
}

// matchTargets drops targets that a string_match upsert could not write. A
// semantic candidate which was not selected again is deleted by this edge set,
// so the pair is proposed on the next run instead. A retired semantic row is
// never overwritten by string_match and only semantic selection revives it.
func (p *sourcePlan) matchTargets(candidates map[string]*entity.LinkEdge, retired map[string]struct{}, selected []linking.Selection) []linking.MatchTarget {
	blocked := maps.Clone(retired)
	for to, e := range candidates {
		if e.LinkType == entity.LinkTypeSemantic {
			blocked[to] = struct{}{}
		}
	}
	for _, s := range selected {
		delete(blocked, s.ToArticleID)
	}
	if len(blocked) == 0 {
		return p.targets
	}
	out := make([]linking.MatchTarget, 0, len(p.targets))
	for _, t := range p.targets {
		if _, ok := blocked[t.ArticleID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (p *sourcePlan) candidate(to, anchor string, score float64, lt entity.LinkType) entity.CandidateEdge {
	return entity.CandidateEdge{
		WorkspaceID:     p.src.WorkspaceID,
		FromArticleID:   p.src.ID,
		ToArticleID:     to,
		AnchorText:      anchor,
		SimilarityScore: score,
		LinkType:        lt,
	}
}

func scoreChanged(old, current float64) bool {
	return math.Abs(old-current) > ScoreEpsilon
}

func (r *run) isLive(articleID string) bool {
	_, ok := r.live[articleID]
	return ok
}

func (r *run) isPending(articleID string) bool {
	_, ok := r.pending[articleID]
	return ok
}
