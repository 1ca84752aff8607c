package similarity

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"semantic-linker/internal/domain/entity"
)

// Index answers nearest-neighbor queries over one workspace snapshot.
type Index interface {
	// Neighbors returns at most k neighbors of articleID ordered by score descending,
	// then by id ascending. The article itself is never included. An article absent
	// from the snapshot has no neighbors.
	Neighbors(articleID string, k int) []entity.Neighbor
	// Score returns the cosine similarity of two indexed articles.
	Score(a, b string) (float64, bool)
	// Contains reports whether the article is part of the snapshot.
	Contains(articleID string) bool
	// IDs returns the indexed article ids in ascending order.
	IDs() []string
}

type point struct {
	id  string
	vec []float64
}

// snapshot holds the normalized vectors of one workspace for one model version.
type snapshot struct {
	points []point
	pos    map[string]int
}

// newSnapshot keeps only embeddings of workspaceID produced by modelVersion.
// Zero-norm vectors are dropped, as are vectors whose length differs from the first kept one.
func newSnapshot(workspaceID, modelVersion string, embeddings []*entity.ArticleEmbedding) *snapshot {
	s := &snapshot{pos: make(map[string]int)}
	dim := -1
	for _, e := range embeddings {
		if e == nil || e.WorkspaceID != workspaceID || e.ModelVersion != modelVersion {
			continue
		}
		if _, dup := s.pos[e.ArticleID]; dup {
			continue
		}
		v := normalize(e.Vector)
		if v == nil {
			continue
		}
		if dim == -1 {
			dim = len(v)
		}
		if len(v) != dim {
			continue
		}
		s.points = append(s.points, point{id: e.ArticleID, vec: v})
	}
	sort.Slice(s.points, func(i, j int) bool { return s.points[i].id < s.points[j].id })
	for i, p := range s.points {
		s.pos[p.id] = i
	}
	return s
}

func (s *snapshot) Contains(articleID string) bool {
	_, ok := s.pos[articleID]
	return ok
}

func (s *snapshot) IDs() []string {
	ids := make([]string, len(s.points))
	for i, p := range s.points {
		ids[i] = p.id
	}
	return ids
}

func (s *snapshot) Score(a, b string) (float64, bool) {
	i, ok := s.pos[a]
	if !ok {
		return 0, false
	}
	j, ok := s.pos[b]
	if !ok {
		return 0, false
	}
	return dot(s.points[i].vec, s.points[j].vec), true
}

// rank scores candidates against the query point and keeps the best k.
func (s *snapshot) rank(q int, candidates []int, k int) []entity.Neighbor {
	out := make([]entity.Neighbor, 0, len(candidates))
	qv := s.points[q].vec
	for _, c := range candidates {
		if c == q {
			continue
		}
		out = append(out, entity.Neighbor{ArticleID: s.points[c].id, Score: dot(qv, s.points[c].vec)})
	}
	entity.SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ExactIndex compares the query against every other article of the snapshot.
type ExactIndex struct {
	*snapshot
	all []int
}

// BuildExact builds an exact index for one workspace and model version.
func BuildExact(workspaceID, modelVersion string, embeddings []*entity.ArticleEmbedding) *ExactIndex {
	s := newSnapshot(workspaceID, modelVersion, embeddings)
	all := make([]int, len(s.points))
	for i := range all {
		all[i] = i
	}
	return &ExactIndex{snapshot: s, all: all}
}

func (x *ExactIndex) Neighbors(articleID string, k int) []entity.Neighbor {
	q, ok := x.pos[articleID]
	if !ok || k <= 0 {
		return []entity.Neighbor{}
	}
	return x.rank(q, x.all, k)
}

// AllNeighbors computes the neighbor lists of every indexed article in parallel.
func AllNeighbors(ctx context.Context, idx Index, k int) (map[string][]entity.Neighbor, error) {
	ids := idx.IDs()
	out := make(map[string][]entity.Neighbor, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ns := idx.Neighbors(id, k)
			mu.Lock()
			out[id] = ns
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
