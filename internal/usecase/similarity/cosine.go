// Package similarity computes cosine similarity between article embeddings of one
// workspace and answers ranked nearest-neighbor queries over a snapshot.
package similarity

import (
	"math"
)

// Cosine returns dot(a,b)/(|a||b|) clamped to [-1, 1].
// ok is false when the vectors differ in length, are empty, or either has zero norm;
// such pairs are excluded from similarity entirely.
func Cosine(a, b []float32) (score float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return clamp(dot / (math.Sqrt(na) * math.Sqrt(nb))), true
}

// normalize returns a unit-length float64 copy of v, or nil for a zero vector.
func normalize(v []float32) []float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x) / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return clamp(s)
}

func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}
