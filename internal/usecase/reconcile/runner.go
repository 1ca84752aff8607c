package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/metrics"
)

// Locker serializes runs of one workspace across processes.
type Locker interface {
	// TryLock acquires the workspace lock without blocking. acquired is false
	// when another holder owns it.
	TryLock(ctx context.Context, workspaceID string) (unlock func(), acquired bool, err error)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLocker adds a cross-process lock around every run.
func WithLocker(l Locker) RunnerOption {
	return func(r *Runner) {
		r.locker = l
	}
}

// Runner triggers reconciliation runs. At most one run per workspace is in
// flight; a trigger arriving while one is running is coalesced into it and
// reported as entity.ErrRunInProgress.
type Runner struct {
	job    *Job
	locker Locker

	mu       sync.Mutex
	inFlight map[string]struct{}
	states   map[string]State
	last     map[string]RunStatus
}

// NewRunner creates a Runner around job.
func NewRunner(job *Job, opts ...RunnerOption) *Runner {
	r := &Runner{
		job:      job,
		inFlight: make(map[string]struct{}),
		states:   make(map[string]State),
		last:     make(map[string]RunStatus),
	}
	prev := job.observe
	job.observe = func(ws string, s State) {
		r.mu.Lock()
		r.states[ws] = s
		r.mu.Unlock()
		if prev != nil {
			prev(ws, s)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trigger runs reconciliation for a workspace and waits for it to finish.
func (r *Runner) Trigger(ctx context.Context, workspaceID string) (RunStatus, error) {
	if workspaceID == "" {
		return RunStatus{}, fmt.Errorf("trigger: %w", entity.ErrInvalidInput)
	}

	r.mu.Lock()
	if _, busy := r.inFlight[workspaceID]; busy {
		r.mu.Unlock()
		metrics.RecordReconcileCoalesced()
		return RunStatus{}, entity.ErrRunInProgress
	}
	r.inFlight[workspaceID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, workspaceID)
		r.mu.Unlock()
	}()

	if r.locker != nil {
		unlock, acquired, err := r.locker.TryLock(ctx, workspaceID)
		if err != nil {
			return RunStatus{}, fmt.Errorf("trigger: %w", err)
		}
		if !acquired {
			metrics.RecordReconcileCoalesced()
			return RunStatus{}, entity.ErrRunInProgress
		}
		defer unlock()
	}

	status := r.job.Run(ctx, workspaceID)

	r.mu.Lock()
	r.last[workspaceID] = status
	r.mu.Unlock()

	if status.Err != nil {
		return status, status.Err
	}
	return status, nil
}

// State returns the current phase of a workspace.
func (r *Runner) State(workspaceID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[workspaceID]; ok {
		return s
	}
	return StateIdle
}

// LastStatus returns the status of the workspace's most recent finished run.
func (r *Runner) LastStatus(workspaceID string) (RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.last[workspaceID]
	return s, ok
}

// RunAll triggers every workspace with at most concurrency runs in parallel.
// A failing or busy workspace does not stop the others.
func (r *Runner) RunAll(ctx context.Context, concurrency int) ([]RunStatus, error) {
	workspaces, err := r.job.Workspaces(ctx)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	statuses := make([]RunStatus, len(workspaces))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, ws := range workspaces {
		g.Go(func() error {
			status, err := r.Trigger(ctx, ws)
			if err != nil {
				slog.Warn("workspace reconciliation did not complete",
					slog.String("workspace_id", ws),
					slog.Any("error", err))
			}
			if status.RunID == "" {
				status.WorkspaceID = ws
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()
	return statuses, ctx.Err()
}
