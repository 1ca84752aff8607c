// Package entity defines the core domain entities of the linking engine:
// article snapshots read from the external article store, their embeddings,
// similarity neighbors and the persisted link edges, together with their
// validation rules and domain-specific errors.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxEmbedRunes caps how much article text is sent to the embedding service.
const DefaultMaxEmbedRunes = 1000

// Article is a read-only snapshot of an article owned by the external article store.
// Unpublished articles are treated like deleted ones by the linking engine.
type Article struct {
	ID             string
	WorkspaceID    string
	Title          string
	Content        string
	ContentHash    string
	TargetKeywords []string
	Published      bool
	UpdatedAt      time.Time
}

// Hash returns the content hash of the article, computing it from title and
// content when the article store did not provide one.
func (a *Article) Hash() string {
	if a.ContentHash != "" {
		return a.ContentHash
	}
	return HashContent(a.Title, a.Content)
}

// EmbeddingText returns the text submitted to the embedding service,
// truncated to maxRunes runes (DefaultMaxEmbedRunes when maxRunes <= 0).
func (a *Article) EmbeddingText(maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxEmbedRunes
	}
	text := strings.TrimSpace(a.Title)
	if body := strings.TrimSpace(a.Content); body != "" {
		if text != "" {
			text += "\n\n"
		}
		text += body
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

// HashContent returns a stable hex-encoded SHA-256 digest of an article's title and content.
func HashContent(title, content string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
