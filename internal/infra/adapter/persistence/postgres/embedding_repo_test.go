package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-linker/internal/domain/entity"
	pg "semantic-linker/internal/infra/adapter/persistence/postgres"
	"semantic-linker/tests/fixtures"
)

var embeddingCols = []string{
	"article_id", "workspace_id", "model_version", "embedding", "content_hash", "target_keywords", "computed_at",
}

/* ─────────────────────────── Upsert Tests ─────────────────────────── */

func TestEmbeddingRepo_Upsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	emb := fixtures.NewTestEmbedding(
		fixtures.WithVector([]float32{1, 0, 0}),
		fixtures.WithKeywords("go", "testing"),
	)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO article_embeddings")).
		WithArgs(emb.ArticleID, emb.WorkspaceID, emb.ModelVersion, 3, sqlmock.AnyArg(),
			emb.ContentHash, `["go","testing"]`, emb.ComputedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewEmbeddingRepo(db)
	err = repo.Upsert(context.Background(), emb)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepo_Upsert_ValidationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewEmbeddingRepo(db)

	tests := []struct {
		name      string
		embedding *entity.ArticleEmbedding
		wantErr   error
	}{
		{name: "nil embedding"},
		{
			name:      "empty article id",
			embedding: fixtures.NewTestEmbedding(fixtures.WithArticleID("")),
			wantErr:   entity.ErrValidationFailed,
		},
		{
			name:      "empty vector",
			embedding: fixtures.NewTestEmbedding(fixtures.WithVector(nil)),
			wantErr:   entity.ErrInvalidVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Upsert(context.Background(), tt.embedding)
			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

/* ─────────────────────────── Get Tests ─────────────────────────── */

func TestEmbeddingRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	computed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_id, workspace_id, model_version, embedding")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(embeddingCols).
			AddRow("a1", "ws-1", "m1", []byte("[1,0.5,0]"), "h1", []byte(`["go"]`), computed))

	repo := pg.NewEmbeddingRepo(db)
	emb, err := repo.Get(context.Background(), "a1")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5, 0}, emb.Vector)
	assert.Equal(t, []string{"go"}, emb.TargetKeywords)
	assert.Equal(t, "m1", emb.ModelVersion)
	assert.Equal(t, computed, emb.ComputedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_id")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(embeddingCols))

	repo := pg.NewEmbeddingRepo(db)
	emb, err := repo.Get(context.Background(), "missing")

	assert.Nil(t, emb)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

/* ─────────────────────────── ListByWorkspace Tests ─────────────────────────── */

func TestEmbeddingRepo_ListByWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE workspace_id = $1 AND model_version = $2")).
		WithArgs("ws-1", "m1").
		WillReturnRows(sqlmock.NewRows(embeddingCols).
			AddRow("a1", "ws-1", "m1", []byte("[1,0]"), "h1", []byte(`[]`), now).
			AddRow("a2", "ws-1", "m1", []byte("[0,1]"), "h2", []byte(`["k"]`), now))

	repo := pg.NewEmbeddingRepo(db)
	list, err := repo.ListByWorkspace(context.Background(), "ws-1", "m1")

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ArticleID)
	assert.Nil(t, list[0].TargetKeywords)
	assert.Equal(t, []string{"k"}, list[1].TargetKeywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepo_ListByWorkspace_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_id")).
		WithArgs("ws-1", "m1").
		WillReturnError(errors.New("database connection error"))

	repo := pg.NewEmbeddingRepo(db)
	list, err := repo.ListByWorkspace(context.Background(), "ws-1", "m1")

	assert.Nil(t, list)
	assert.Contains(t, err.Error(), "ListByWorkspace")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingRepo_ListArticleIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_id FROM article_embeddings WHERE workspace_id = $1")).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"article_id"}).AddRow("a1").AddRow("a2"))

	ids, err := pg.NewEmbeddingRepo(db).ListArticleIDs(context.Background(), "ws-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

/* ─────────────────────────── Delete Tests ─────────────────────────── */

func TestEmbeddingRepo_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
	}{
		{"existing", 1},
		{"missing is not an error", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM article_embeddings WHERE article_id = $1")).
				WithArgs("a1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			n, err := pg.NewEmbeddingRepo(db).Delete(context.Background(), "a1")

			assert.NoError(t, err)
			assert.Equal(t, tt.affected, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
