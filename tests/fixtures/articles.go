package fixtures

import (
	"strings"
	"time"

	"semantic-linker/internal/domain/entity"
)

// ArticleOption is a functional option for customizing test articles.
type ArticleOption func(*entity.Article)

// NewTestArticle creates a published article snapshot with sensible defaults.
// The content hash is derived from the final title and content.
func NewTestArticle(id string, opts ...ArticleOption) *entity.Article {
	a := &entity.Article{
		ID:          id,
		WorkspaceID: "ws-1",
		Title:       "Article " + id,
		Content:     GenerateBody(200),
		Published:   true,
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.ContentHash == "" {
		a.ContentHash = entity.HashContent(a.Title, a.Content)
	}

	return a
}

// InWorkspace sets the article's workspace.
func InWorkspace(ws string) ArticleOption {
	return func(a *entity.Article) {
		a.WorkspaceID = ws
	}
}

// WithTitle sets the article title.
func WithTitle(title string) ArticleOption {
	return func(a *entity.Article) {
		a.Title = title
	}
}

// WithContent sets the article body.
func WithContent(content string) ArticleOption {
	return func(a *entity.Article) {
		a.Content = content
	}
}

// WithTargetKeywords sets the article's target keywords.
func WithTargetKeywords(keywords ...string) ArticleOption {
	return func(a *entity.Article) {
		a.TargetKeywords = keywords
	}
}

// Unpublished marks the article as unpublished.
func Unpublished() ArticleOption {
	return func(a *entity.Article) {
		a.Published = false
	}
}

var bodySentences = []string{
	"Search engines reward sites whose pages reference each other in a meaningful way.",
	"Internal links help readers discover related guides without leaving the site.",
	"A focused anchor text describes the destination page better than a generic phrase.",
	"Topic clusters group articles that answer closely related questions.",
	"Content audits reveal pages that no other page links to.",
	"Editors review suggested links before they are published.",
	"Crawl depth decreases when important pages are linked from the home page.",
	"Stale links to removed pages should be cleaned up regularly.",
}

// GenerateBody generates deterministic English article text of roughly targetLength runes.
func GenerateBody(targetLength int) string {
	var b strings.Builder
	for i := 0; b.Len() < targetLength; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(bodySentences[i%len(bodySentences)])
	}
	return b.String()
}
