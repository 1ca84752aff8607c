package entity

import (
	"math"
	"time"
)

// ArticleEmbedding is the vector representation of one article's text.
// There is at most one embedding per ArticleID. Embeddings of different
// workspaces are never compared, and an embedding whose ModelVersion differs
// from the engine's current version is treated as absent.
type ArticleEmbedding struct {
	ArticleID      string
	WorkspaceID    string
	Vector         []float32
	ModelVersion   string
	ContentHash    string
	TargetKeywords []string
	ComputedAt     time.Time
}

// Validate checks the structural invariants of the embedding.
// Dimensionality is checked against the model registry by the embedding store.
func (e *ArticleEmbedding) Validate() error {
	if e.ArticleID == "" {
		return &ValidationError{Field: "ArticleID", Message: "article id is required"}
	}
	if e.WorkspaceID == "" {
		return &ValidationError{Field: "WorkspaceID", Message: "workspace id is required"}
	}
	if e.ModelVersion == "" {
		return &ValidationError{Field: "ModelVersion", Message: "model version is required"}
	}
	if len(e.Vector) == 0 {
		return &InvalidVectorError{ArticleID: e.ArticleID, ModelVersion: e.ModelVersion}
	}
	for _, v := range e.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &ValidationError{Field: "Vector", Message: "vector contains NaN or Inf"}
		}
	}
	return nil
}

// IsCurrent reports whether the embedding was produced by the given model version.
func (e *ArticleEmbedding) IsCurrent(modelVersion string) bool {
	return e != nil && e.ModelVersion == modelVersion
}

// Clone returns a deep copy so stores never share slices with callers.
func (e *ArticleEmbedding) Clone() *ArticleEmbedding {
	if e == nil {
		return nil
	}
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	c.TargetKeywords = append([]string(nil), e.TargetKeywords...)
	return &c
}

// EmbeddingFailure records a permanent embedding-service rejection for one
// version of an article's content. While the article's content hash still
// equals ContentHash the article is not re-submitted.
type EmbeddingFailure struct {
	ArticleID   string
	WorkspaceID string
	ContentHash string
	Reason      string
	FailedAt    time.Time
}

// Suppresses reports whether this failure still applies to content with the given hash.
func (f *EmbeddingFailure) Suppresses(contentHash string) bool {
	return f != nil && f.ContentHash == contentHash
}
