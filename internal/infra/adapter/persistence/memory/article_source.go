package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

// ArticleSource is a mutable in-memory article store.
type ArticleSource struct {
	mu       sync.RWMutex
	articles map[string]entity.Article
}

// NewArticleSource creates a store holding the given articles.
func NewArticleSource(articles ...*entity.Article) *ArticleSource {
	s := &ArticleSource{articles: make(map[string]entity.Article)}
	for _, a := range articles {
		s.Put(a)
	}
	return s
}

var _ repository.ArticleSource = (*ArticleSource)(nil)

// Put inserts or replaces an article. An empty ContentHash is derived from title and content.
func (s *ArticleSource) Put(a *entity.Article) {
	c := *a
	c.TargetKeywords = slices.Clone(a.TargetKeywords)
	if c.ContentHash == "" {
		c.ContentHash = entity.HashContent(c.Title, c.Content)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[c.ID] = c
}

// Remove deletes an article from the store.
func (s *ArticleSource) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, id)
}

func (s *ArticleSource) ListWorkspaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, a := range s.articles {
		if _, ok := seen[a.WorkspaceID]; !ok {
			seen[a.WorkspaceID] = struct{}{}
			out = append(out, a.WorkspaceID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *ArticleSource) ListWorkspaceArticles(_ context.Context, workspaceID string) ([]*entity.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Article, 0)
	for _, a := range s.articles {
		if a.WorkspaceID == workspaceID {
			a := a
			a.TargetKeywords = slices.Clone(a.TargetKeywords)
			out = append(out, &a)
		}
	}
	slices.SortFunc(out, func(x, y *entity.Article) int { return strings.Compare(x.ID, y.ID) })
	return out, nil
}
