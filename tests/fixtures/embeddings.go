// Package fixtures provides reusable test data generators shared by package tests.
package fixtures

import (
	"math"
	"time"

	"semantic-linker/internal/domain/entity"
)

// TestModelVersion is the model version used by fixtures unless overridden.
const TestModelVersion = "test-model-v1"

// EmbeddingOption is a functional option for customizing test embeddings.
type EmbeddingOption func(*entity.ArticleEmbedding)

// NewTestEmbedding creates a valid ArticleEmbedding with sensible defaults.
// Use functional options to customize the embedding for specific test cases.
//
// Example:
//
//	embedding := NewTestEmbedding()
//	embedding := NewTestEmbedding(WithArticleID("a-100"), WithVector([]float32{1, 0, 0}))
func NewTestEmbedding(opts ...EmbeddingOption) *entity.ArticleEmbedding {
	e := &entity.ArticleEmbedding{
		ArticleID:    "article-1",
		WorkspaceID:  "ws-1",
		Vector:       NormalizedVector(8, 0.1),
		ModelVersion: TestModelVersion,
		ContentHash:  entity.HashContent("Test title", "Test content"),
		ComputedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// WithArticleID sets the ArticleID of the embedding.
func WithArticleID(id string) EmbeddingOption {
	return func(e *entity.ArticleEmbedding) {
		e.ArticleID = id
	}
}

// WithWorkspaceID sets the WorkspaceID of the embedding.
func WithWorkspaceID(id string) EmbeddingOption {
	return func(e *entity.ArticleEmbedding) {
		e.WorkspaceID = id
	}
}

// WithModelVersion sets the ModelVersion of the embedding.
func WithModelVersion(v string) EmbeddingOption {
	return func(e *entity.ArticleEmbedding) {
		e.ModelVersion = v
	}
}

// WithVector sets the embedding vector.
func WithVector(v []float32) EmbeddingOption {
	return func(e *entity.ArticleEmbedding) {
		e.Vector = v
	}
}

// WithKeywords sets the target keywords carried by the embedding.
func WithKeywords(keywords ...string) EmbeddingOption {
	return func(e *entity.ArticleEmbedding) {
		e.TargetKeywords = keywords
	}
}

// NormalizedVector returns a deterministic unit-length vector. Different
// seeds give different, though highly similar, directions.
func NormalizedVector(dimension int, seed float32) []float32 {
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = seed + float32(i)*0.001
	}
	return Normalize(vec)
}

// Normalize scales v to unit length in place and returns it. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
