package entity

import (
	"cmp"
	"slices"
)

// Neighbor is one entry of a ranked similarity list: a candidate article and
// its cosine similarity to the query article, in [-1, 1].
type Neighbor struct {
	ArticleID string
	Score     float64
}

// CompareNeighbors orders by score descending, then by article id ascending.
// The id tie-break keeps rankings deterministic for identical inputs.
func CompareNeighbors(a, b Neighbor) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ArticleID, b.ArticleID)
}

// SortNeighbors sorts in place using CompareNeighbors.
func SortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, CompareNeighbors)
}
