// Package linking decides which outbound links an article should carry.
// Selection is pure: it works on a ranked neighbor list and the article's
// existing applied edges and never touches storage.
package linking

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"semantic-linker/internal/domain/entity"
)

// MaxTitleAnchorRunes caps the length of an anchor derived from a target title.
const MaxTitleAnchorRunes = 60

// AnchorSource holds the texts an anchor can be drawn from for one target article.
// Keywords are tried in order before falling back to the title.
type AnchorSource struct {
	Keywords []string
	Title    string
}

// SelectInput is everything Select needs for one source article.
type SelectInput struct {
	WorkspaceID     string
	SourceArticleID string

	// Neighbors is the ranked similarity list of the source article.
	Neighbors []entity.Neighbor

	// Applied holds the live applied outbound edges of the source article.
	// They consume budget, reserve their anchors and are never re-proposed.
	Applied []*entity.LinkEdge

	MaxLinksPerArticle int
	MinSimilarity      float64

	// Anchors maps target article ids to their anchor sources.
	Anchors map[string]AnchorSource
}

// Selection is one link the selector wants the source article to carry.
type Selection struct {
	ToArticleID string
	AnchorText  string
	Score       float64
	LinkType    entity.LinkType
}

// Select applies the selection policy in order: similarity threshold, discard of
// targets that already carry an applied edge, budget cap, then top-ranked targets
// with de-duplicated anchors.
//
// Returns an *entity.InvalidBudgetError when MaxLinksPerArticle is negative.
func Select(in SelectInput) ([]Selection, error) {
	if in.MaxLinksPerArticle < 0 {
		return nil, &entity.InvalidBudgetError{Budget: in.MaxLinksPerArticle}
	}

	remaining := in.MaxLinksPerArticle - len(in.Applied)
	if remaining <= 0 || len(in.Neighbors) == 0 {
		return []Selection{}, nil
	}

	taken := newAnchorSet()
	linked := make(map[string]struct{}, len(in.Applied))
	for _, e := range in.Applied {
		linked[e.ToArticleID] = struct{}{}
		taken.add(e.AnchorText)
	}

	ranked := make([]entity.Neighbor, 0, len(in.Neighbors))
	for _, n := range in.Neighbors {
		if n.ArticleID == in.SourceArticleID || n.Score < in.MinSimilarity {
			continue
		}
		if _, ok := linked[n.ArticleID]; ok {
			continue
		}
		ranked = append(ranked, n)
	}
	entity.SortNeighbors(ranked)

	out := make([]Selection, 0, min(remaining, len(ranked)))
	for _, n := range ranked {
		if len(out) == remaining {
			break
		}
		if _, ok := linked[n.ArticleID]; ok {
			continue
		}
		anchor, ok := taken.pick(in.Anchors[n.ArticleID])
		if !ok {
			continue
		}
		linked[n.ArticleID] = struct{}{}
		out = append(out, Selection{
			ToArticleID: n.ArticleID,
			AnchorText:  anchor,
			Score:       n.Score,
			LinkType:    entity.LinkTypeSemantic,
		})
	}
	return out, nil
}

// anchorSet tracks anchors already used by one source article, compared
// case-insensitively after trimming.
type anchorSet map[string]struct{}

func newAnchorSet() anchorSet {
	return anchorSet{}
}

func anchorKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s anchorSet) has(anchor string) bool {
	_, ok := s[anchorKey(anchor)]
	return ok
}

func (s anchorSet) add(anchor string) {
	if k := anchorKey(anchor); k != "" {
		s[k] = struct{}{}
	}
}

// pick returns the first unused keyword of src, else its truncated title,
// and reserves it. ok is false when every option is empty or already taken.
func (s anchorSet) pick(src AnchorSource) (string, bool) {
	for _, kw := range src.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || s.has(kw) {
			continue
		}
		s.add(kw)
		return kw, true
	}
	title := TitleAnchor(src.Title)
	if title == "" || s.has(title) {
		return "", false
	}
	s.add(title)
	return title, true
}

// TitleAnchor trims a title and truncates it to MaxTitleAnchorRunes at a word
// boundary. A single word longer than the limit is cut at the limit.
func TitleAnchor(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if utf8.RuneCountInString(title) <= MaxTitleAnchorRunes {
		return title
	}
	runes := []rune(title)
	cut := runes[:MaxTitleAnchorRunes]
	if unicode.IsSpace(runes[MaxTitleAnchorRunes]) {
		return strings.TrimSpace(string(cut))
	}
	if i := strings.LastIndexFunc(string(cut), unicode.IsSpace); i > 0 {
		return strings.TrimSpace(string(cut)[:i])
	}
	return string(cut)
}
