package similarity

import (
	"math/rand/v2"

	"semantic-linker/internal/domain/entity"
)

// LSHConfig configures the random-hyperplane index.
type LSHConfig struct {
	Tables int    // independent hash tables
	Bits   int    // hyperplanes per table, at most 64
	Seed   uint64 // fixed seed keeps bucket assignment reproducible
	Probe  bool   // also visit buckets at Hamming distance 1
}

// DefaultLSHConfig suits workspaces of a few thousand articles.
func DefaultLSHConfig() LSHConfig {
	return LSHConfig{Tables: 16, Bits: 6, Seed: 42, Probe: true}
}

// LSHIndex buckets articles by the sign pattern of random hyperplane projections and
// re-ranks bucket candidates with exact cosine. Results are approximate.
type LSHIndex struct {
	*snapshot
	cfg     LSHConfig
	planes  [][][]float64 // [table][bit][dim]
	tables  []map[uint64][]int
	signs   [][]uint64 // [point][table]
}

// BuildLSH builds an approximate index for one workspace and model version.
func BuildLSH(workspaceID, modelVersion string, embeddings []*entity.ArticleEmbedding, cfg LSHConfig) *LSHIndex {
	if cfg.Tables <= 0 {
		cfg.Tables = DefaultLSHConfig().Tables
	}
	if cfg.Bits <= 0 || cfg.Bits > 64 {
		cfg.Bits = DefaultLSHConfig().Bits
	}

	s := newSnapshot(workspaceID, modelVersion, embeddings)
	idx := &LSHIndex{snapshot: s, cfg: cfg}
	if len(s.points) == 0 {
		return idx
	}

	dim := len(s.points[0].vec)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	idx.planes = make([][][]float64, cfg.Tables)
	for t := range idx.planes {
		idx.planes[t] = make([][]float64, cfg.Bits)
		for b := range idx.planes[t] {
			plane := make([]float64, dim)
			for d := range plane {
				plane[d] = rng.NormFloat64()
			}
			idx.planes[t][b] = plane
		}
	}

	idx.tables = make([]map[uint64][]int, cfg.Tables)
	for t := range idx.tables {
		idx.tables[t] = make(map[uint64][]int)
	}
	idx.signs = make([][]uint64, len(s.points))
	for i, p := range s.points {
		idx.signs[i] = make([]uint64, cfg.Tables)
		for t := range idx.tables {
			sig := idx.signature(t, p.vec)
			idx.signs[i][t] = sig
			idx.tables[t][sig] = append(idx.tables[t][sig], i)
		}
	}
	return idx
}

func (x *LSHIndex) signature(table int, v []float64) uint64 {
	var sig uint64
	for b, plane := range x.planes[table] {
		var s float64
		for d := range plane {
			s += plane[d] * v[d]
		}
		if s >= 0 {
			sig |= 1 << uint(b)
		}
	}
	return sig
}

func (x *LSHIndex) Neighbors(articleID string, k int) []entity.Neighbor {
	q, ok := x.pos[articleID]
	if !ok || k <= 0 {
		return []entity.Neighbor{}
	}

	seen := make(map[int]struct{})
	candidates := make([]int, 0, 64)
	add := func(bucket []int) {
		for _, c := range bucket {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				candidates = append(candidates, c)
			}
		}
	}

	for t, table := range x.tables {
		sig := x.signs[q][t]
		add(table[sig])
		if x.cfg.Probe {
			for b := 0; b < x.cfg.Bits; b++ {
				add(table[sig^(1<<uint(b))])
			}
		}
	}
	return x.rank(q, candidates, k)
}
