package linking

import (
	"strings"

	"semantic-linker/internal/domain/entity"
)

// MatchTarget is an article that may be linked when one of its keywords
// appears in the source text.
type MatchTarget struct {
	ArticleID string
	Keywords  []string
}

// MatchInput is everything MatchStrings needs for one source article.
type MatchInput struct {
	SourceArticleID string
	SourceTitle     string
	SourceContent   string

	// Targets are tried in order; callers pass them sorted by article id.
	Targets []MatchTarget

	// Applied and Selected already consume budget and anchors.
	Applied  []*entity.LinkEdge
	Selected []Selection

	MaxLinksPerArticle int

	// Score returns the similarity of the source to a target, if known.
	Score func(toArticleID string) (float64, bool)
}

// MatchStrings proposes string_match links for targets that received no
// semantic selection: a target qualifies when one of its keywords occurs in the
// source title or content, case-insensitively and on word boundaries. The
// matching keyword becomes the anchor. Budget and anchor de-duplication follow
// the same rules as Select, using what Applied and Selected left over.
func MatchStrings(in MatchInput) ([]Selection, error) {
	if in.MaxLinksPerArticle < 0 {
		return nil, &entity.InvalidBudgetError{Budget: in.MaxLinksPerArticle}
	}
	remaining := in.MaxLinksPerArticle - len(in.Applied) - len(in.Selected)
	if remaining <= 0 || len(in.Targets) == 0 {
		return []Selection{}, nil
	}

	taken := newAnchorSet()
	linked := map[string]struct{}{in.SourceArticleID: {}}
	for _, e := range in.Applied {
		linked[e.ToArticleID] = struct{}{}
		taken.add(e.AnchorText)
	}
	for _, s := range in.Selected {
		linked[s.ToArticleID] = struct{}{}
		taken.add(s.AnchorText)
	}

	text := in.SourceTitle + "\n" + in.SourceContent
	out := []Selection{}
	for _, t := range in.Targets {
		if len(out) == remaining {
			break
		}
		if _, ok := linked[t.ArticleID]; ok {
			continue
		}
		for _, kw := range t.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" || taken.has(kw) || !ContainsKeyword(text, kw) {
				continue
			}
			var score float64
			if in.Score != nil {
				if s, ok := in.Score(t.ArticleID); ok {
					score = s
				}
			}
			taken.add(kw)
			linked[t.ArticleID] = struct{}{}
			out = append(out, Selection{
				ToArticleID: t.ArticleID,
				AnchorText:  kw,
				Score:       score,
				LinkType:    entity.LinkTypeStringMatch,
			})
			break
		}
	}
	return out, nil
}

// ContainsKeyword reports whether keyword occurs in text as a whole word or
// phrase, ignoring case.
func ContainsKeyword(text, keyword string) bool {
	k, ok := CompileKeyword(keyword)
	return ok && k.FindIndex(text) != nil
}
