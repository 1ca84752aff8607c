package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/logging"
	"semantic-linker/internal/observability/metrics"
	"semantic-linker/internal/observability/slo"
	"semantic-linker/internal/observability/tracing"
	"semantic-linker/internal/repository"
	"semantic-linker/internal/usecase/embedding"
	"semantic-linker/internal/usecase/similarity"
)

// Embedder turns article text into a vector of the given model version.
// Errors wrap entity.ErrEmbeddingTransient or entity.ErrEmbeddingPermanent.
type Embedder interface {
	Embed(ctx context.Context, text, modelVersion string) ([]float32, error)
}

// EmbeddingStore is the part of the embedding store a run reads and writes.
type EmbeddingStore interface {
	similarity.EmbeddingReader
	Get(ctx context.Context, articleID string) (*entity.ArticleEmbedding, error)
	Put(ctx context.Context, articleID, workspaceID string, vector []float32, modelVersion string, opts ...embedding.PutOption) error
	ListArticleIDs(ctx context.Context, workspaceID string) ([]string, error)
	Delete(ctx context.Context, articleID string) error
	RecordFailure(ctx context.Context, f *entity.EmbeddingFailure) error
	Failures(ctx context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error)
}

// Option configures a Job.
type Option func(*Job)

// WithOverrides sets per-workspace policy overrides.
func WithOverrides(overrides map[string]WorkspaceOverride) Option {
	return func(j *Job) {
		j.overrides = overrides
	}
}

// WithClock replaces the clock used for run timestamps and retirement times.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// WithStateObserver registers a callback invoked on every phase change.
func WithStateObserver(observe func(workspaceID string, state State)) Option {
	return func(j *Job) {
		j.observe = observe
	}
}

// Job performs reconciliation runs. It is stateless between runs; the caller
// is responsible for not running the same workspace twice concurrently.
type Job struct {
	articles  repository.ArticleSource
	store     EmbeddingStore
	embedder  Embedder
	index     *similarity.Service
	links     repository.LinkMap
	cfg       Config
	overrides map[string]WorkspaceOverride
	now       func() time.Time
	observe   func(string, State)
}

// NewJob creates a reconciliation job. The configuration is validated here;
// workspace overrides are validated when the workspace is run.
func NewJob(
	articles repository.ArticleSource,
	store EmbeddingStore,
	embedder Embedder,
	index *similarity.Service,
	links repository.LinkMap,
	cfg Config,
	opts ...Option,
) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new reconcile job: %w", err)
	}
	j := &Job{
		articles: articles,
		store:    store,
		embedder: embedder,
		index:    index,
		links:    links,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// ConfigFor returns the effective configuration of a workspace.
func (j *Job) ConfigFor(workspaceID string) Config {
	if o, ok := j.overrides[workspaceID]; ok {
		return o.Apply(j.cfg)
	}
	return j.cfg
}

// Workspaces lists every workspace known to the article store.
func (j *Job) Workspaces(ctx context.Context) ([]string, error) {
	ws, err := j.articles.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return ws, nil
}

// run carries the per-run working state shared by the phases.
type run struct {
	cfg    Config
	status *RunStatus
	logger *slog.Logger

	live    map[string]*entity.Article
	pending map[string]struct{}
}

// Run performs one reconciliation pass over a workspace and reports how it ended.
// Errors are carried in RunStatus.Err with Outcome set to OutcomeFailed.
func (j *Job) Run(ctx context.Context, workspaceID string) RunStatus {
	status := RunStatus{
		RunID:       uuid.NewString(),
		WorkspaceID: workspaceID,
		State:       StateIdle,
		StartedAt:   j.now().UTC(),
	}
	defer metrics.RunStarted()()

	ctx = logging.ContextWithRunID(ctx, status.RunID)
	logger := logging.WithWorkspace(logging.WithRunID(ctx, slog.Default()), workspaceID)
	ctx, span := tracing.StartSpan(ctx, "reconcile.run", workspaceID)

	r := &run{
		cfg:     j.ConfigFor(workspaceID),
		status:  &status,
		logger:  logger,
		pending: make(map[string]struct{}),
	}
	err := j.execute(ctx, r)

	status.FinishedAt = j.now().UTC()
	switch {
	case err != nil:
		status.Outcome = OutcomeFailed
		status.Err = err
	case status.Outcome == OutcomeAborted:
	case status.Skipped > 0:
		status.Outcome = OutcomePartial
	default:
		status.Outcome = OutcomeSuccess
	}
	j.setState(r, StateIdle)
	tracing.EndSpan(span, err)

	metrics.RecordReconcileRun(string(status.Outcome))
	metrics.RecordEdgeMutations(status.Upserted, status.Deleted, status.Retired)
	if status.Outcome == OutcomeSuccess || status.Outcome == OutcomePartial {
		slo.UpdateLastSuccess(workspaceID, status.FinishedAt)
	}

	attrs := []any{
		slog.String("outcome", string(status.Outcome)),
		slog.Int("embedded", status.Embedded),
		slog.Int("skipped", status.Skipped),
		slog.Int("purged", status.Purged),
		slog.Int("upserted", status.Upserted),
		slog.Int("deleted", status.Deleted),
		slog.Int("retired", status.Retired),
		slog.Duration("duration", status.Duration()),
	}
	switch status.Outcome {
	case OutcomeFailed:
		logger.Error("reconciliation failed", append(attrs, slog.Any("error", err))...)
	case OutcomeAborted:
		logger.Warn("reconciliation aborted: refresh budget exceeded", attrs...)
	default:
		logger.Info("reconciliation completed", attrs...)
	}
	return status
}

func (j *Job) execute(ctx context.Context, r *run) error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}

	aborted, err := j.phase(ctx, r, StateRefreshingEmbeddings, func(ctx context.Context) (bool, error) {
		return j.refresh(ctx, r)
	})
	if err != nil {
		return err
	}
	if aborted {
		r.status.Outcome = OutcomeAborted
		return nil
	}

	var idx similarity.Index
	var neighbors map[string][]entity.Neighbor
	if _, err := j.phase(ctx, r, StateRecomputingSimilarity, func(ctx context.Context) (bool, error) {
		var err error
		idx, neighbors, err = j.recompute(ctx, r)
		return false, err
	}); err != nil {
		return err
	}

	var sets []entity.ArticleEdgeSet
	if _, err := j.phase(ctx, r, StateSelecting, func(ctx context.Context) (bool, error) {
		var err error
		sets, err = j.plan(ctx, r, idx, neighbors)
		return false, err
	}); err != nil {
		return err
	}

	_, err = j.phase(ctx, r, StateReconciling, func(ctx context.Context) (bool, error) {
		return false, j.write(ctx, r, sets)
	})
	return err
}

// phase runs fn as the given state, timing and tracing it.
func (j *Job) phase(ctx context.Context, r *run, state State, fn func(context.Context) (bool, error)) (bool, error) {
	j.setState(r, state)
	ctx, span := tracing.StartSpan(ctx, "reconcile."+string(state), r.status.WorkspaceID)
	start := time.Now()

	stop, err := fn(ctx)

	metrics.RecordPhaseDuration(string(state), time.Since(start))
	tracing.EndSpan(span, err)
	if err != nil {
		return false, fmt.Errorf("%s: %w", state, err)
	}
	return stop, nil
}

func (j *Job) setState(r *run, state State) {
	r.status.State = state
	if j.observe != nil {
		j.observe(r.status.WorkspaceID, state)
	}
}

// write commits one edge set per source article.
func (j *Job) write(ctx context.Context, r *run, sets []entity.ArticleEdgeSet) error {
	var total entity.EdgeSetResult
	defer func() {
		r.status.Upserted = total.Upserted
		r.status.Deleted = total.Deleted
		r.status.Retired = total.Retired
	}()
	for _, set := range sets {
		if set.IsEmpty() {
			continue
		}
		res, err := j.links.ApplyArticleEdgeSet(ctx, set)
		if err != nil {
			return fmt.Errorf("apply edges of %s: %w", set.FromArticleID, err)
		}
		total.Add(res)
	}
	return nil
}

// PurgeArticle removes an article from the engine immediately: its embedding is
// deleted, candidate edges touching it are deleted and applied edges touching it
// are retired. Purging an unknown article is a no-op.
func (j *Job) PurgeArticle(ctx context.Context, workspaceID, articleID string) (entity.EdgeSetResult, error) {
	var res entity.EdgeSetResult
	if workspaceID == "" || articleID == "" {
		return res, fmt.Errorf("purge article: %w", entity.ErrInvalidInput)
	}

	emb, err := j.store.Get(ctx, articleID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
	case err != nil:
		return res, fmt.Errorf("purge article: %w", err)
	case emb.WorkspaceID != workspaceID:
		return res, fmt.Errorf("purge article: %s belongs to another workspace: %w", articleID, entity.ErrInvalidInput)
	default:
		if err := j.store.Delete(ctx, articleID); err != nil {
			return res, fmt.Errorf("purge article: %w", err)
		}
		metrics.RecordEmbeddingsPurged(1)
	}

	deleted, err := j.links.DeleteCandidatesTouching(ctx, workspaceID, articleID)
	if err != nil {
		return res, fmt.Errorf("purge article: %w", err)
	}
	retired, err := j.links.RetireTouching(ctx, workspaceID, articleID, j.now().UTC())
	if err != nil {
		return res, fmt.Errorf("purge article: %w", err)
	}
	res.Deleted = int(deleted)
	res.Retired = int(retired)
	metrics.RecordEdgeMutations(0, res.Deleted, res.Retired)

	slog.Info("article purged",
		slog.String("workspace_id", workspaceID),
		slog.String("article_id", articleID),
		slog.Int("deleted", res.Deleted),
		slog.Int("retired", res.Retired))
	return res, nil
}
