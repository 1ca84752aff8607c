package similarity

import (
	"context"
	"errors"
	"fmt"

	"semantic-linker/internal/domain/entity"
)

// EmbeddingReader is the part of the embedding store the similarity service reads.
type EmbeddingReader interface {
	CurrentModelVersion() string
	GetCurrent(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error)
	ListCurrent(ctx context.Context, workspaceID string) ([]*entity.ArticleEmbedding, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLSH switches the service to the approximate bucketed index.
func WithLSH(cfg LSHConfig) Option {
	return func(s *Service) {
		s.useLSH = true
		s.lsh = cfg
	}
}

// Service is the SimilarityIndex: it builds per-workspace snapshot indexes
// from the current embeddings and answers neighbor queries.
type Service struct {
	store  EmbeddingReader
	useLSH bool
	lsh    LSHConfig
}

// NewService creates a similarity service. The exact index is used unless WithLSH is given.
func NewService(store EmbeddingReader, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildFrom builds an index over the given snapshot, ignoring embeddings of other
// workspaces or of a non-current model version.
func (s *Service) BuildFrom(workspaceID string, embeddings []*entity.ArticleEmbedding) Index {
	model := s.store.CurrentModelVersion()
	if s.useLSH {
		return BuildLSH(workspaceID, model, embeddings, s.lsh)
	}
	return BuildExact(workspaceID, model, embeddings)
}

// Build loads the workspace's current embeddings and indexes them.
func (s *Service) Build(ctx context.Context, workspaceID string) (Index, error) {
	embeddings, err := s.store.ListCurrent(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return s.BuildFrom(workspaceID, embeddings), nil
}

// Neighbors returns at most k articles of the workspace most similar to articleID.
// An article without a current embedding has no neighbors. Asking for an article
// that belongs to a different workspace is an error.
func (s *Service) Neighbors(ctx context.Context, workspaceID, articleID string, k int) ([]entity.Neighbor, error) {
	if k <= 0 {
		return []entity.Neighbor{}, nil
	}

	emb, err := s.store.GetCurrent(ctx, articleID)
	if errors.Is(err, entity.ErrNotFound) {
		return []entity.Neighbor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	if emb.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("neighbors: article %q belongs to another workspace: %w", articleID, entity.ErrInvalidInput)
	}

	idx, err := s.Build(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	return idx.Neighbors(articleID, k), nil
}
