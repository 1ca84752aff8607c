// Package embedding provides the embedding store use case: dimensionality checks
// against the model registry, current-model filtering and failure bookkeeping
// on top of an EmbeddingRepository.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

// ModelRegistry maps model versions to the dimensionality of their vectors.
type ModelRegistry struct {
	Current    string
	Dimensions map[string]int
}

// Dimension returns the registered dimensionality of a model version.
func (r ModelRegistry) Dimension(modelVersion string) (int, bool) {
	d, ok := r.Dimensions[modelVersion]
	return d, ok && d > 0
}

// PutOption customizes the stored embedding.
type PutOption func(*entity.ArticleEmbedding)

// WithKeywords records the article's target keywords alongside the vector.
func WithKeywords(keywords []string) PutOption {
	return func(e *entity.ArticleEmbedding) {
		e.TargetKeywords = keywords
	}
}

// WithContentHash records the hash of the text the vector was computed from.
func WithContentHash(hash string) PutOption {
	return func(e *entity.ArticleEmbedding) {
		e.ContentHash = hash
	}
}

// Store is the EmbeddingStore.
type Store struct {
	repo     repository.EmbeddingRepository
	failures repository.EmbeddingFailureRepository
	registry ModelRegistry
	now      func() time.Time
}

// NewStore creates a Store. failures may be nil when failure suppression is not needed.
func NewStore(repo repository.EmbeddingRepository, failures repository.EmbeddingFailureRepository, registry ModelRegistry) *Store {
	return &Store{repo: repo, failures: failures, registry: registry, now: time.Now}
}

// CurrentModelVersion returns the model version whose embeddings are considered current.
func (s *Store) CurrentModelVersion() string {
	return s.registry.Current
}

// Put stores or replaces the embedding of an article. The vector length must match the
// dimensionality registered for modelVersion; an unknown model version is also rejected.
// A successful Put clears any recorded permanent failure of the article.
func (s *Store) Put(ctx context.Context, articleID, workspaceID string, vector []float32, modelVersion string, opts ...PutOption) error {
	dim, ok := s.registry.Dimension(modelVersion)
	if !ok || len(vector) != dim {
		return fmt.Errorf("put embedding: %w", &entity.InvalidVectorError{
			ArticleID: articleID, ModelVersion: modelVersion, Expected: dim, Got: len(vector),
		})
	}

	emb := &entity.ArticleEmbedding{
		ArticleID:    articleID,
		WorkspaceID:  workspaceID,
		Vector:       vector,
		ModelVersion: modelVersion,
		ComputedAt:   s.now().UTC(),
	}
	for _, opt := range opts {
		opt(emb)
	}

	if err := s.repo.Upsert(ctx, emb); err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}
	if s.failures != nil {
		if err := s.failures.Clear(ctx, articleID); err != nil {
			return fmt.Errorf("put embedding: clear failure: %w", err)
		}
	}
	return nil
}

// Get returns the stored embedding of an article, whatever its model version.
// Returns entity.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error) {
	emb, err := s.repo.Get(ctx, articleID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return emb, nil
}

// GetCurrent is Get restricted to the current model version; stale embeddings are reported as absent.
func (s *Store) GetCurrent(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error) {
	emb, err := s.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !emb.IsCurrent(s.registry.Current) {
		return nil, entity.ErrNotFound
	}
	return emb, nil
}

// ListCurrent returns the workspace's embeddings produced by the current model version.
func (s *Store) ListCurrent(ctx context.Context, workspaceID string) ([]*entity.ArticleEmbedding, error) {
	list, err := s.repo.ListByWorkspace(ctx, workspaceID, s.registry.Current)
	if err != nil {
		return nil, fmt.Errorf("list current embeddings: %w", err)
	}
	return list, nil
}

// ListArticleIDs returns every embedded article id of the workspace, any model version.
func (s *Store) ListArticleIDs(ctx context.Context, workspaceID string) ([]string, error) {
	ids, err := s.repo.ListArticleIDs(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list embedded articles: %w", err)
	}
	return ids, nil
}

// Delete removes an article's embedding and failure record. Idempotent.
func (s *Store) Delete(ctx context.Context, articleID string) error {
	if _, err := s.repo.Delete(ctx, articleID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	if s.failures != nil {
		if err := s.failures.Clear(ctx, articleID); err != nil {
			return fmt.Errorf("delete embedding: clear failure: %w", err)
		}
	}
	return nil
}

// RecordFailure remembers a permanent embedding failure for one version of an article's content.
func (s *Store) RecordFailure(ctx context.Context, f *entity.EmbeddingFailure) error {
	if s.failures == nil {
		return nil
	}
	if f.FailedAt.IsZero() {
		f.FailedAt = s.now().UTC()
	}
	if err := s.failures.Record(ctx, f); err != nil {
		return fmt.Errorf("record embedding failure: %w", err)
	}
	return nil
}

// Failures returns the workspace's recorded permanent failures keyed by article id.
func (s *Store) Failures(ctx context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error) {
	if s.failures == nil {
		return map[string]*entity.EmbeddingFailure{}, nil
	}
	f, err := s.failures.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list embedding failures: %w", err)
	}
	return f, nil
}
