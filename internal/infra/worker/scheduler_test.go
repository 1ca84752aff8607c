package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"semantic-linker/internal/usecase/reconcile"
)

type fakeReconciler struct {
	statuses []reconcile.RunStatus
	err      error
	block    chan struct{}
	entered  chan struct{}
	gotLimit int
	deadline bool
}

func (f *fakeReconciler) RunAll(ctx context.Context, concurrency int) ([]reconcile.RunStatus, error) {
	f.gotLimit = concurrency
	_, f.deadline = ctx.Deadline()
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.statuses, f.err
}

func statuses(outcomes ...reconcile.Outcome) []reconcile.RunStatus {
	out := make([]reconcile.RunStatus, len(outcomes))
	for i, o := range outcomes {
		out[i] = reconcile.RunStatus{WorkspaceID: string(rune('A' + i)), Outcome: o}
	}
	return out
}

func TestNewScheduler_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Nowhere/Void"
	if _, err := NewScheduler(&cfg, &fakeReconciler{}, nil, testLogger()); err == nil {
		t.Error("expected error for unknown timezone")
	}

	cfg = DefaultConfig()
	cfg.CronSchedule = "not a schedule"
	if _, err := NewScheduler(&cfg, &fakeReconciler{}, nil, testLogger()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestScheduler_RunPass(t *testing.T) {
	tests := []struct {
		name       string
		reconciler *fakeReconciler
		want       PassResult
	}{
		{
			name:       "all succeed",
			reconciler: &fakeReconciler{statuses: statuses(reconcile.OutcomeSuccess, reconcile.OutcomeSuccess)},
			want:       PassResult{Status: "success", Workspaces: 2},
		},
		{
			name:       "partial workspace",
			reconciler: &fakeReconciler{statuses: statuses(reconcile.OutcomeSuccess, reconcile.OutcomePartial)},
			want:       PassResult{Status: "partial", Workspaces: 2, Partial: 1},
		},
		{
			name:       "aborted workspace counts as failed",
			reconciler: &fakeReconciler{statuses: statuses(reconcile.OutcomeAborted, reconcile.OutcomePartial)},
			want:       PassResult{Status: "failure", Workspaces: 2, Failed: 1, Partial: 1},
		},
		{
			name:       "listing workspaces fails",
			reconciler: &fakeReconciler{err: errors.New("list workspaces: connection refused")},
			want:       PassResult{Status: "failure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WorkspaceConcurrency = 3
			s, err := NewScheduler(&cfg, tt.reconciler, nil, testLogger())
			if err != nil {
				t.Fatalf("NewScheduler: %v", err)
			}

			got := s.RunPass(context.Background())
			got.Duration = 0

			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if tt.reconciler.gotLimit != 3 {
				t.Errorf("expected concurrency 3, got %d", tt.reconciler.gotLimit)
			}
			if !tt.reconciler.deadline {
				t.Error("expected the pass context to carry the job timeout")
			}
		})
	}
}

func TestScheduler_SkipsOverlappingPass(t *testing.T) {
	cfg := DefaultConfig()
	metrics := newTestWorkerMetrics(t)
	r := &fakeReconciler{
		statuses: statuses(reconcile.OutcomeSuccess),
		block:    make(chan struct{}),
		entered:  make(chan struct{}),
	}
	s, err := NewScheduler(&cfg, r, metrics, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	first := make(chan PassResult, 1)
	go func() { first <- s.RunPass(context.Background()) }()
	<-r.entered

	if got := s.RunPass(context.Background()); got.Status != "skipped" {
		t.Errorf("expected overlapping pass to be skipped, got %q", got.Status)
	}

	close(r.block)
	select {
	case res := <-first:
		if res.Status != "success" {
			t.Errorf("expected first pass success, got %q", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not finish")
	}

	if got := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("skipped")); got != 1 {
		t.Errorf("expected 1 skipped pass, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful pass, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CronJobWorkspacesProcessedTotal); got != 1 {
		t.Errorf("expected 1 workspace processed, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CronJobLastSuccessTimestamp); got <= 0 {
		t.Errorf("expected last success timestamp, got %v", got)
	}
}
