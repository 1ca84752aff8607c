package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/metrics"
	"semantic-linker/internal/observability/slo"
	"semantic-linker/internal/usecase/embedding"
)

// Article refresh results, used as metric labels.
const (
	refreshEmbedded   = "embedded"
	refreshTransient  = "transient"
	refreshPermanent  = "permanent"
	refreshSuppressed = "suppressed"
)

// refresh brings the workspace's embeddings in line with its live articles.
// Embeddings of removed or unpublished articles are purged; new and edited
// articles are re-embedded concurrently. Articles that could not be embedded
// are marked pending. It reports true when the refresh budget ran out.
func (j *Job) refresh(ctx context.Context, r *run) (bool, error) {
	ws := r.status.WorkspaceID

	articles, err := j.articles.ListWorkspaceArticles(ctx, ws)
	if err != nil {
		return false, fmt.Errorf("list articles: %w", err)
	}
	r.live = make(map[string]*entity.Article, len(articles))
	for _, a := range articles {
		if a.WorkspaceID == ws && a.Published {
			r.live[a.ID] = a
		}
	}

	if err := j.purgeRemoved(ctx, r); err != nil {
		return false, err
	}

	current, err := j.store.ListCurrent(ctx, ws)
	if err != nil {
		return false, err
	}
	stored := make(map[string]string, len(current))
	for _, e := range current {
		stored[e.ArticleID] = e.ContentHash
	}
	failures, err := j.store.Failures(ctx, ws)
	if err != nil {
		return false, err
	}

	var todo []*entity.Article
	for _, a := range articles {
		if _, ok := r.live[a.ID]; !ok {
			continue
		}
		hash := a.Hash()
		if h, ok := stored[a.ID]; ok && h == hash {
			continue
		}
		if failures[a.ID].Suppresses(hash) {
			r.markPending(a.ID, refreshSuppressed)
			continue
		}
		todo = append(todo, a)
	}

	refreshCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.cfg.RefreshBudget > 0 {
		refreshCtx, cancel = context.WithTimeout(ctx, r.cfg.RefreshBudget)
	}
	defer cancel()

	failed, err := j.embedAll(refreshCtx, r, todo)
	if err != nil {
		return false, err
	}

	slo.UpdateRefreshFailureRate(ws, failed, len(todo))
	slo.UpdateEmbeddingCoverage(ws, len(r.live)-len(r.pending), len(r.live))

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(refreshCtx.Err(), context.DeadlineExceeded) {
		return true, nil
	}
	return false, nil
}

// purgeRemoved deletes embeddings whose article is no longer live.
func (j *Job) purgeRemoved(ctx context.Context, r *run) error {
	ids, err := j.store.ListArticleIDs(ctx, r.status.WorkspaceID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := r.live[id]; ok {
			continue
		}
		if err := j.store.Delete(ctx, id); err != nil {
			return err
		}
		r.status.Purged++
	}
	metrics.RecordEmbeddingsPurged(r.status.Purged)
	return nil
}

// embedAll embeds the articles with at most EmbedConcurrency requests in flight.
// It returns the number of articles that failed. Only storage errors are returned.
func (j *Job) embedAll(ctx context.Context, r *run, todo []*entity.Article) (int, error) {
	if len(todo) == 0 {
		return 0, nil
	}

	var (
		mu     sync.Mutex
		failed int
	)
	sem := semaphore.NewWeighted(int64(r.cfg.EmbedConcurrency))
	var g errgroup.Group

	for i, a := range todo {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			for _, rest := range todo[i:] {
				r.markPending(rest.ID, refreshTransient)
				failed++
			}
			mu.Unlock()
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			result, err := j.embedOne(ctx, r, a)
			mu.Lock()
			defer mu.Unlock()
			switch result {
			case refreshEmbedded:
				r.status.Embedded++
				metrics.RecordArticleRefresh(result)
			case "":
			default:
				r.markPending(a.ID, result)
				failed++
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return failed, err
	}
	return failed, nil
}

// embedOne embeds and stores one article. The returned result is empty only
// together with a storage error.
func (j *Job) embedOne(ctx context.Context, r *run, a *entity.Article) (string, error) {
	model := j.store.CurrentModelVersion()
	hash := a.Hash()
	logger := r.logger.With(slog.String("article_id", a.ID))

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	vec, err := j.embedder.Embed(callCtx, a.EmbeddingText(r.cfg.MaxEmbedRunes), model)
	cancel()

	// A computed vector is kept even when the refresh budget ran out meanwhile.
	storeCtx := context.WithoutCancel(ctx)
	if err == nil {
		err = j.store.Put(storeCtx, a.ID, a.WorkspaceID, vec, model,
			embedding.WithKeywords(a.TargetKeywords),
			embedding.WithContentHash(hash))
		if err == nil {
			return refreshEmbedded, nil
		}
		var invalid *entity.InvalidVectorError
		if !errors.As(err, &invalid) {
			return "", fmt.Errorf("store embedding of %s: %w", a.ID, err)
		}
	}

	if errors.Is(err, entity.ErrEmbeddingPermanent) || errors.Is(err, entity.ErrInvalidVector) {
		logger.Warn("embedding rejected permanently", slog.Any("error", err))
		ferr := j.store.RecordFailure(storeCtx, &entity.EmbeddingFailure{
			ArticleID:   a.ID,
			WorkspaceID: a.WorkspaceID,
			ContentHash: hash,
			Reason:      err.Error(),
			FailedAt:    j.now().UTC(),
		})
		if ferr != nil {
			return "", fmt.Errorf("record failure of %s: %w", a.ID, ferr)
		}
		return refreshPermanent, nil
	}

	logger.Warn("embedding failed, will retry next run", slog.Any("error", err))
	return refreshTransient, nil
}

// markPending excludes an article from this pass. Callers hold the refresh lock
// when embedding concurrently.
func (r *run) markPending(articleID, result string) {
	r.pending[articleID] = struct{}{}
	r.status.Skipped++
	metrics.RecordArticleRefresh(result)
}
