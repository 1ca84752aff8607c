package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"semantic-linker/internal/domain/entity"
)

// Hashing is a deterministic bag-of-words embedder. Each lower-cased token is
// hashed into one of Dimension buckets with a hashed sign and the result is
// L2-normalized. Texts sharing vocabulary get a high cosine similarity, which is
// enough for dry runs and tests without an embedding service.
type Hashing struct {
	dimensions map[string]int
}

// NewHashing creates a hashing embedder producing vectors of the registered
// dimensionality per model version.
func NewHashing(dimensions map[string]int) *Hashing {
	return &Hashing{dimensions: dimensions}
}

// Embed implements the embedding service port.
func (h *Hashing) Embed(ctx context.Context, text, modelVersion string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hashing embed: %v: %w", err, entity.ErrEmbeddingTransient)
	}
	dim := h.dimensions[modelVersion]
	if dim <= 0 {
		return nil, fmt.Errorf("hashing embed: unknown model version %q: %w", modelVersion, entity.ErrEmbeddingPermanent)
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("hashing embed: no tokens: %w", entity.ErrEmbeddingPermanent)
	}

	acc := make([]float64, dim)
	for _, tok := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1
		}
		acc[sum%uint64(dim)] += sign
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	if norm == 0 {
		return out, nil
	}
	for i, x := range acc {
		out[i] = float32(x / norm)
	}
	return out, nil
}
