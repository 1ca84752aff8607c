package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/infra/adapter/persistence/memory"
	"semantic-linker/internal/infra/embedder"
	"semantic-linker/internal/usecase/embedding"
	"semantic-linker/internal/usecase/reconcile"
	"semantic-linker/internal/usecase/render"
	"semantic-linker/internal/usecase/similarity"
	"semantic-linker/tests/fixtures"
)

const sharedBody = "goroutines channels select statements worker pools and concurrency patterns in practice"

type testEnv struct {
	articles *memory.ArticleSource
	links    *memory.LinkMap
	engine   *engine
	db       *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dims := map[string]int{fixtures.TestModelVersion: 64}
	articles := memory.NewArticleSource(
		fixtures.NewTestArticle("a1", fixtures.WithTitle("Go channels"), fixtures.WithContent(sharedBody)),
		fixtures.NewTestArticle("a2", fixtures.WithTitle("Go goroutines"), fixtures.WithContent(sharedBody)),
	)
	store := embedding.NewStore(memory.NewEmbeddingRepo(), memory.NewEmbeddingFailureRepo(), embedding.ModelRegistry{
		Current:    fixtures.TestModelVersion,
		Dimensions: dims,
	})
	sim := similarity.NewService(store)
	links := memory.NewLinkMap()

	cfg := reconcile.DefaultConfig()
	cfg.MinSimilarity = 0.1
	cfg.RetirementThreshold = 0
	cfg.RefreshBudget = 0
	job, err := reconcile.NewJob(articles, store, embedder.NewHashing(dims), sim, links, cfg)
	require.NoError(t, err)

	return &testEnv{
		articles: articles,
		links:    links,
		engine: &engine{
			Links:      links,
			Similarity: sim,
			Job:        job,
			Runner:     reconcile.NewRunner(job),
			Publisher:  render.NewPublisher(links, nil),
		},
	}
}

func (e *testEnv) run(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd("test",
		func(context.Context) (*engine, error) { return e.engine, nil },
		func(context.Context) (*sql.DB, error) {
			if e.db == nil {
				return nil, errors.New("no database")
			}
			return e.db, nil
		})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e *testEnv) candidate(t *testing.T, from, to, anchor string) *entity.LinkEdge {
	t.Helper()
	edge, err := e.links.UpsertCandidate(context.Background(), entity.CandidateEdge{
		WorkspaceID:     "ws-1",
		FromArticleID:   from,
		ToArticleID:     to,
		AnchorText:      anchor,
		SimilarityScore: 0.8,
		LinkType:        entity.LinkTypeSemantic,
	})
	require.NoError(t, err)
	return edge
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.2.3", nil, nil)

	assert.Equal(t, "linkctl", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("json"))

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "reconcile", "neighbors", "links", "apply", "render", "purge"}, names)
}

func TestReconcileCmd(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, nil, "reconcile", "--workspace", "ws-1")
	require.NoError(t, err)
	assert.Contains(t, out, "ws-1\tsuccess\tembedded=2")

	out, _, err = env.run(t, nil, "links", "ws-1", "--filter", "candidate", "--json")
	require.NoError(t, err)
	var edges []edgeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	require.Len(t, edges, 2)
	assert.Equal(t, "a1", edges[0].From)
	assert.Equal(t, "a2", edges[0].To)
	assert.Equal(t, "semantic", edges[0].Type)
	assert.False(t, edges[0].Applied)
}

func TestReconcileCmd_All(t *testing.T) {
	env := newTestEnv(t)
	env.articles.Put(fixtures.NewTestArticle("b1", fixtures.InWorkspace("ws-2"), fixtures.WithContent(sharedBody)))

	out, _, err := env.run(t, nil, "reconcile", "--all", "--json")
	require.NoError(t, err)

	var runs []runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "success", r.Outcome, r.Workspace)
		assert.NotEmpty(t, r.RunID)
	}
}

func TestReconcileCmd_Flags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "neither workspace nor all", args: []string{"reconcile"}},
		{name: "both workspace and all", args: []string{"reconcile", "-w", "ws-1", "--all"}},
		{name: "positional argument", args: []string{"reconcile", "ws-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newTestEnv(t).run(t, nil, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestReconcileCmd_FailedRun(t *testing.T) {
	env := newTestEnv(t)
	// A workspace override with a negative budget fails the run before any write.
	budget := -1
	job, err := reconcile.NewJob(env.articles, nil, nil, nil, env.links, reconcile.DefaultConfig(),
		reconcile.WithOverrides(map[string]reconcile.WorkspaceOverride{"ws-1": {MaxLinksPerArticle: &budget}}))
	require.NoError(t, err)
	env.engine.Job = job
	env.engine.Runner = reconcile.NewRunner(job)

	out, stderr, err := env.run(t, nil, "reconcile", "-w", "ws-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 workspace runs did not complete")
	assert.Contains(t, out, "ws-1\tfailed")
	assert.Contains(t, stderr, "workspace config")
	assert.Zero(t, env.links.Writes())
}

func TestNeighborsCmd(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, nil, "reconcile", "-w", "ws-1")
	require.NoError(t, err)

	out, _, err := env.run(t, nil, "neighbors", "ws-1", "a1", "-k", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "  a2"), lines[0])

	out, _, err = env.run(t, nil, "neighbors", "ws-1", "missing")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, _, err = env.run(t, nil, "neighbors", "ws-2", "a1")
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestLinksCmd_InvalidFilter(t *testing.T) {
	_, _, err := newTestEnv(t).run(t, nil, "links", "ws-1", "--filter", "bogus")
	assert.Error(t, err)
}

func TestApplyCmd(t *testing.T) {
	env := newTestEnv(t)
	edge := env.candidate(t, "a1", "a2", "goroutines")

	out, _, err := env.run(t, nil, "apply", edge.ID, "--from-post", "post-1", "--to-post", "post-2")
	require.NoError(t, err)
	assert.Contains(t, out, edge.ID+" applied at ")

	got, err := env.links.Get(context.Background(), edge.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApplied)
	assert.Equal(t, "post-1", got.FromPostID)
	assert.Equal(t, "post-2", got.ToPostID)
}

func TestApplyCmd_Errors(t *testing.T) {
	env := newTestEnv(t)
	edge := env.candidate(t, "a1", "a2", "goroutines")

	_, _, err := env.run(t, nil, "apply", "no-such-edge")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, _, err = env.run(t, nil, "apply", edge.ID, "--from-post", "post-1")
	assert.Error(t, err, "--from-post requires --to-post")
}

func TestRenderCmd(t *testing.T) {
	const doc = `<html><body><p>Learn how goroutines cooperate.</p></body></html>`

	t.Run("publish marks applied", func(t *testing.T) {
		env := newTestEnv(t)
		edge := env.candidate(t, "a1", "a2", "goroutines")

		out, stderr, err := env.run(t, strings.NewReader(doc), "render", "a1")
		require.NoError(t, err)
		assert.Contains(t, out, `<a href="/a2">goroutines</a>`)
		assert.Contains(t, stderr, "applied=1 missing=0")

		got, err := env.links.Get(context.Background(), edge.ID)
		require.NoError(t, err)
		assert.True(t, got.IsApplied)
	})

	t.Run("dry run leaves edges untouched", func(t *testing.T) {
		env := newTestEnv(t)
		edge := env.candidate(t, "a1", "a2", "goroutines")
		env.candidate(t, "a1", "b9", "channels")

		out, _, err := env.run(t, strings.NewReader(doc), "render", "a1", "--dry-run", "--json")
		require.NoError(t, err)

		var res struct {
			HTML    string   `json:"html"`
			Applied []string `json:"applied"`
			Missing []string `json:"missing"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, []string{edge.ID}, res.Applied)
		assert.Len(t, res.Missing, 1)

		got, err := env.links.Get(context.Background(), edge.ID)
		require.NoError(t, err)
		assert.False(t, got.IsApplied)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := newTestEnv(t).run(t, nil, "render", "a1", "--file", t.TempDir()+"/missing.html")
		assert.ErrorContains(t, err, "read document")
	})
}

func TestPurgeCmd(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, nil, "reconcile", "-w", "ws-1")
	require.NoError(t, err)

	out, _, err := env.run(t, nil, "purge", "ws-1", "a2")
	require.NoError(t, err)
	assert.Equal(t, "deleted=2 retired=0\n", out)

	out, _, err = env.run(t, nil, "links", "ws-1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMigrateCmd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DROP TABLE IF EXISTS link_edges").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS embedding_failures").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS article_embeddings").WillReturnResult(sqlmock.NewResult(0, 0))

	env := newTestEnv(t)
	env.db = db
	out, _, err := env.run(t, nil, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, "migrations rolled back\n", out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCmd_NoDatabase(t *testing.T) {
	_, _, err := newTestEnv(t).run(t, nil, "migrate", "up")
	assert.EqualError(t, err, "no database")
}
