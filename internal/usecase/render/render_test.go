package render_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/infra/adapter/persistence/memory"
	"semantic-linker/internal/usecase/render"
)

func edge(id, to, anchor string) *entity.LinkEdge {
	return &entity.LinkEdge{ID: id, FromArticleID: "A", ToArticleID: to, ToPostID: to, AnchorText: anchor}
}

/* ──────────────────────────────── 1. InsertLinks ──────────────────────────────── */

func TestInsertLinks(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		edges       []*entity.LinkEdge
		wantHTML    string
		wantApplied []string
		wantMissing []string
	}{
		{
			name:        "first occurrence only",
			html:        `<p>Read our SEO tips. More seo tips later.</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "seo tips")},
			wantHTML:    `<p>Read our <a href="/B">SEO tips</a>. More seo tips later.</p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "whole words only",
			html:        `<p>cookbook and book</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "book")},
			wantHTML:    `<p>cookbook and <a href="/B">book</a></p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "skips existing links and headings",
			html:        `<h2>seo tips</h2><p><a href="/X">seo tips</a> then seo tips</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "seo tips")},
			wantHTML:    `<h2>seo tips</h2><p><a href="/X">seo tips</a> then <a href="/B">seo tips</a></p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "target already linked",
			html:        `<p><a href="/B">guide</a> and seo tips</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "seo tips")},
			wantHTML:    `<p><a href="/B">guide</a> and seo tips</p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "non-ASCII anchor",
			html:        `<p>Best café in town</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "café")},
			wantHTML:    `<p>Best <a href="/B">café</a> in town</p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "Vietnamese phrase",
			html:        `<p>Bí quyết pha cà phê ngon</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "cà phê")},
			wantHTML:    `<p>Bí quyết pha <a href="/B">cà phê</a> ngon</p>`,
			wantApplied: []string{"e1"},
			wantMissing: []string{},
		},
		{
			name:        "prefix of non-ASCII word",
			html:        `<p>Best café in town</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "caf")},
			wantHTML:    `<p>Best café in town</p>`,
			wantApplied: []string{},
			wantMissing: []string{"e1"},
		},
		{
			name:        "anchor missing",
			html:        `<p>nothing relevant</p>`,
			edges:       []*entity.LinkEdge{edge("e1", "B", "seo tips")},
			wantHTML:    `<p>nothing relevant</p>`,
			wantApplied: []string{},
			wantMissing: []string{"e1"},
		},
		{
			name: "several edges in order",
			html: `<p>content marketing beats seo tips</p>`,
			edges: []*entity.LinkEdge{
				edge("e1", "B", "seo tips"),
				edge("e2", "C", "content marketing"),
			},
			wantHTML:    `<p><a href="/C">content marketing</a> beats <a href="/B">seo tips</a></p>`,
			wantApplied: []string{"e1", "e2"},
			wantMissing: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := render.InsertLinks(tt.html, tt.edges, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.wantHTML, res.HTML)
			assert.Equal(t, tt.wantApplied, res.Applied)
			assert.Equal(t, tt.wantMissing, res.Missing)
		})
	}
}

func TestInsertLinks_SkipsRetiredEdges(t *testing.T) {
	retired := edge("e1", "B", "seo tips")
	at := time.Now()
	retired.RetiredAt = &at

	res, err := render.InsertLinks(`<p>seo tips</p>`, []*entity.LinkEdge{retired}, nil)

	require.NoError(t, err)
	assert.Equal(t, `<p>seo tips</p>`, res.HTML)
	assert.Empty(t, res.Applied)
}

func TestInsertLinks_CustomHref(t *testing.T) {
	href := func(e *entity.LinkEdge) string { return "https://example.com/posts/" + e.ToPostID }

	res, err := render.InsertLinks(`<p>seo tips &amp; tricks</p>`, []*entity.LinkEdge{edge("e1", "B", "seo tips")}, href)

	require.NoError(t, err)
	assert.Equal(t, `<p><a href="https://example.com/posts/B">seo tips</a> &amp; tricks</p>`, res.HTML)
}

/* ──────────────────────────────── 2. Publisher ──────────────────────────────── */

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	links := memory.NewLinkMap()
	b, err := links.UpsertCandidate(ctx, entity.CandidateEdge{
		WorkspaceID: "W", FromArticleID: "A", ToArticleID: "B",
		AnchorText: "seo tips", SimilarityScore: 0.81, LinkType: entity.LinkTypeSemantic,
	})
	require.NoError(t, err)
	c, err := links.UpsertCandidate(ctx, entity.CandidateEdge{
		WorkspaceID: "W", FromArticleID: "A", ToArticleID: "C",
		AnchorText: "cooking recipes", SimilarityScore: 0.6, LinkType: entity.LinkTypeSemantic,
	})
	require.NoError(t, err)

	pub := render.NewPublisher(links, nil)
	res, err := pub.Publish(ctx, "A", `<p>Some seo tips.</p>`)

	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, res.Applied)
	assert.Equal(t, []string{c.ID}, res.Missing)

	got, err := links.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLiveApplied())
	firstApplied := *got.AppliedAt

	got, err = links.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsApplied)

	_, err = pub.Publish(ctx, "A", `<p>Some seo tips.</p>`)
	require.NoError(t, err)
	got, err = links.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, firstApplied, *got.AppliedAt)
}
