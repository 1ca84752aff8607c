// Package memory provides in-process implementations of the repository ports,
// used by tests and by dry runs that must not touch a database.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

// EmbeddingRepo is a map-backed EmbeddingRepository.
type EmbeddingRepo struct {
	mu    sync.RWMutex
	items map[string]*entity.ArticleEmbedding
}

// NewEmbeddingRepo creates an empty in-memory EmbeddingRepository.
func NewEmbeddingRepo() *EmbeddingRepo {
	return &EmbeddingRepo{items: make(map[string]*entity.ArticleEmbedding)}
}

var _ repository.EmbeddingRepository = (*EmbeddingRepo)(nil)

func (r *EmbeddingRepo) Upsert(_ context.Context, emb *entity.ArticleEmbedding) error {
	if emb == nil {
		return &entity.ValidationError{Field: "embedding", Message: "embedding is nil"}
	}
	if err := emb.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[emb.ArticleID] = emb.Clone()
	return nil
}

func (r *EmbeddingRepo) Get(_ context.Context, articleID string) (*entity.ArticleEmbedding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	emb, ok := r.items[articleID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return emb.Clone(), nil
}

func (r *EmbeddingRepo) ListByWorkspace(_ context.Context, workspaceID, modelVersion string) ([]*entity.ArticleEmbedding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.ArticleEmbedding, 0)
	for _, emb := range r.items {
		if emb.WorkspaceID == workspaceID && emb.ModelVersion == modelVersion {
			out = append(out, emb.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *entity.ArticleEmbedding) int {
		return strings.Compare(a.ArticleID, b.ArticleID)
	})
	return out, nil
}

func (r *EmbeddingRepo) ListArticleIDs(_ context.Context, workspaceID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0)
	for id, emb := range r.items {
		if emb.WorkspaceID == workspaceID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *EmbeddingRepo) Delete(_ context.Context, articleID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[articleID]; !ok {
		return 0, nil
	}
	delete(r.items, articleID)
	return 1, nil
}

// EmbeddingFailureRepo is a map-backed EmbeddingFailureRepository.
type EmbeddingFailureRepo struct {
	mu    sync.RWMutex
	items map[string]entity.EmbeddingFailure
}

// NewEmbeddingFailureRepo creates an empty in-memory EmbeddingFailureRepository.
func NewEmbeddingFailureRepo() *EmbeddingFailureRepo {
	return &EmbeddingFailureRepo{items: make(map[string]entity.EmbeddingFailure)}
}

var _ repository.EmbeddingFailureRepository = (*EmbeddingFailureRepo)(nil)

func (r *EmbeddingFailureRepo) Record(_ context.Context, f *entity.EmbeddingFailure) error {
	if f == nil || f.ArticleID == "" {
		return &entity.ValidationError{Field: "ArticleID", Message: "article id is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[f.ArticleID] = *f
	return nil
}

func (r *EmbeddingFailureRepo) ListByWorkspace(_ context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*entity.EmbeddingFailure)
	for id, f := range r.items {
		if f.WorkspaceID == workspaceID {
			f := f
			out[id] = &f
		}
	}
	return out, nil
}

func (r *EmbeddingFailureRepo) Clear(_ context.Context, articleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, articleID)
	return nil
}
