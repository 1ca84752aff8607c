package similarity

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/tests/fixtures"
)

// clusteredCorpus draws points around random unit centers, mimicking topical clusters.
func clusteredCorpus(clusters, perCluster, dim int, sigma float64, seed uint64) []*entity.ArticleEmbedding {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]*entity.ArticleEmbedding, 0, clusters*perCluster)
	for c := 0; c < clusters; c++ {
		center := make([]float32, dim)
		for d := range center {
			center[d] = float32(rng.NormFloat64())
		}
		fixtures.Normalize(center)
		for p := 0; p < perCluster; p++ {
			v := make([]float32, dim)
			for d := range v {
				v[d] = center[d] + float32(rng.NormFloat64()*sigma)
			}
			out = append(out, emb("ws", fmt.Sprintf("c%02d-p%02d", c, p), v...))
		}
	}
	return out
}

func TestLSHIndex_RecallAgainstExact(t *testing.T) {
	const k = 5
	corpus := clusteredCorpus(20, 15, 32, 0.025, 7)

	exact := BuildExact("ws", fixtures.TestModelVersion, corpus)
	lsh := BuildLSH("ws", fixtures.TestModelVersion, corpus, LSHConfig{Tables: 16, Bits: 6, Seed: 42, Probe: true})

	var hits, total int
	for _, id := range exact.IDs() {
		want := make(map[string]struct{})
		for _, n := range exact.Neighbors(id, k) {
			want[n.ArticleID] = struct{}{}
		}
		for _, n := range lsh.Neighbors(id, k) {
			if _, ok := want[n.ArticleID]; ok {
				hits++
			}
		}
		total += len(want)
	}

	recall := float64(hits) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.95, "recall %.3f", recall)
}

func TestLSHIndex_ReRanksWithExactScores(t *testing.T) {
	corpus := clusteredCorpus(4, 10, 16, 0.02, 3)
	lsh := BuildLSH("ws", fixtures.TestModelVersion, corpus, DefaultLSHConfig())

	for _, id := range lsh.IDs() {
		ns := lsh.Neighbors(id, 5)
		for i, n := range ns {
			assert.NotEqual(t, id, n.ArticleID)
			score, ok := lsh.Score(id, n.ArticleID)
			require.True(t, ok)
			assert.Equal(t, score, n.Score)
			if i > 0 {
				assert.LessOrEqual(t, entity.CompareNeighbors(ns[i-1], n), 0)
			}
		}
	}
}

func TestLSHIndex_Reproducible(t *testing.T) {
	corpus := clusteredCorpus(5, 8, 16, 0.05, 11)
	a := BuildLSH("ws", fixtures.TestModelVersion, corpus, DefaultLSHConfig())
	b := BuildLSH("ws", fixtures.TestModelVersion, corpus, DefaultLSHConfig())

	for _, id := range a.IDs() {
		assert.Equal(t, a.Neighbors(id, 4), b.Neighbors(id, 4))
	}
}

func TestLSHIndex_Empty(t *testing.T) {
	idx := BuildLSH("ws", fixtures.TestModelVersion, nil, LSHConfig{})

	assert.Empty(t, idx.Neighbors("x", 3))
	assert.Empty(t, idx.IDs())
}
