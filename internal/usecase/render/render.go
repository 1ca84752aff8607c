// Package render is the reference publisher: it writes an article's outbound
// link edges into its HTML as <a> elements and records which edges made it
// into the published content.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/usecase/linking"
	"semantic-linker/internal/observability/metrics"
)

// skipped holds elements whose text never receives a link.
var skipped = map[atom.Atom]bool{
	atom.A: true, atom.Script: true, atom.Style: true, atom.Code: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Textarea: true,
}

// HrefFunc builds the link target of an edge.
type HrefFunc func(e *entity.LinkEdge) string

// DefaultHref links to the target post by id.
func DefaultHref(e *entity.LinkEdge) string {
	return "/" + e.ToPostID
}

// Result describes one rendering.
type Result struct {
	HTML string
	// Applied lists the ids of edges whose link is present in HTML, in edge order.
	Applied []string
	// Missing lists the ids of edges whose anchor text does not occur in linkable text.
	Missing []string
}

// InsertLinks links the first unlinked, case-insensitive whole-word occurrence of
// each edge's anchor text. Edges are processed in the given order; an edge whose
// target is already linked from the document counts as applied unchanged.
// Text inside existing links, headings, code and scripts is never touched.
func InsertLinks(document string, edges []*entity.LinkEdge, href HrefFunc) (Result, error) {
	if href == nil {
		href = DefaultHref
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return Result{}, fmt.Errorf("parse HTML: %w", err)
	}
	body := doc.Find("body")

	existing := make(map[string]struct{})
	body.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if v, ok := a.Attr("href"); ok {
			existing[v] = struct{}{}
		}
	})

	res := Result{Applied: []string{}, Missing: []string{}}
	for _, e := range edges {
		if e.IsRetired() {
			continue
		}
		target := href(e)
		if _, ok := existing[target]; ok {
			res.Applied = append(res.Applied, e.ID)
			continue
		}
		if linkFirst(body.Nodes, e.AnchorText, target) {
			existing[target] = struct{}{}
			res.Applied = append(res.Applied, e.ID)
		} else {
			res.Missing = append(res.Missing, e.ID)
		}
	}

	out, err := body.Html()
	if err != nil {
		return Result{}, fmt.Errorf("render HTML: %w", err)
	}
	res.HTML = out
	return res, nil
}

// linkFirst wraps the first match of anchor below roots in an <a> element.
func linkFirst(roots []*html.Node, anchor, target string) bool {
	kw, ok := linking.CompileKeyword(anchor)
	if !ok {
		return false
	}
	for _, root := range roots {
		if text, loc := findText(root, kw); text != nil {
			split(text, loc, target)
			return true
		}
	}
	return false
}

// findText returns the first linkable text node containing kw, in document order.
func findText(n *html.Node, kw *linking.Keyword) (*html.Node, []int) {
	switch n.Type {
	case html.TextNode:
		if loc := kw.FindIndex(n.Data); loc != nil {
			return n, loc
		}
		return nil, nil
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return nil, nil
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t, loc := findText(c, kw); t != nil {
			return t, loc
		}
	}
	return nil, nil
}

// split replaces text[loc] with <a href=target>match</a>.
func split(text *html.Node, loc []int, target string) {
	parent := text.Parent
	before, match, after := text.Data[:loc[0]], text.Data[loc[0]:loc[1]], text.Data[loc[1]:]

	link := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr:     []html.Attribute{{Key: "href", Val: target}},
	}
	link.AppendChild(&html.Node{Type: html.TextNode, Data: match})

	if before != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: before}, text)
	}
	parent.InsertBefore(link, text)
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, text)
	}
	parent.RemoveChild(text)
}

// EdgeStore is the part of the link map the publisher uses.
type EdgeStore interface {
	ListOutbound(ctx context.Context, fromArticleID string) ([]*entity.LinkEdge, error)
	MarkApplied(ctx context.Context, edgeID string, appliedAt time.Time) error
}

// Publisher renders outbound links into article HTML and marks rendered edges applied.
type Publisher struct {
	edges EdgeStore
	href  HrefFunc
	now   func() time.Time
}

// NewPublisher creates a Publisher. A nil href uses DefaultHref.
func NewPublisher(edges EdgeStore, href HrefFunc) *Publisher {
	if href == nil {
		href = DefaultHref
	}
	return &Publisher{edges: edges, href: href, now: time.Now}
}

// Publish renders the outbound edges of articleID into document. Every edge whose
// link ends up in the output is marked applied; already applied edges keep their
// original applied_at.
func (p *Publisher) Publish(ctx context.Context, articleID, document string) (Result, error) {
	edges, err := p.edges.ListOutbound(ctx, articleID)
	if err != nil {
		return Result{}, fmt.Errorf("publish %s: %w", articleID, err)
	}

	res, err := InsertLinks(document, edges, p.href)
	if err != nil {
		return Result{}, fmt.Errorf("publish %s: %w", articleID, err)
	}

	byID := make(map[string]*entity.LinkEdge, len(edges))
	for _, e := range edges {
		byID[e.ID] = e
	}
	at := p.now().UTC()
	for _, id := range res.Applied {
		if byID[id].IsLiveApplied() {
			continue
		}
		if err := p.edges.MarkApplied(ctx, id, at); err != nil {
			return res, fmt.Errorf("publish %s: mark %s applied: %w", articleID, id, err)
		}
		metrics.RecordEdgeApplied()
	}

	if len(res.Missing) > 0 {
		slog.Info("anchor text not found for some links",
			slog.String("article_id", articleID),
			slog.Int("missing", len(res.Missing)))
	}
	return res, nil
}
