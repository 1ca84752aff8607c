// Package reconcile runs the per-workspace reconciliation pass that brings the
// link map back into agreement with the current corpus: refresh embeddings,
// recompute similarity, select links, then write the difference.
package reconcile

import (
	"time"
)

// State is the phase a workspace's reconciliation is in.
type State string

const (
	StateIdle                  State = "idle"
	StateRefreshingEmbeddings  State = "refreshing_embeddings"
	StateRecomputingSimilarity State = "recomputing_similarity"
	StateSelecting             State = "selecting"
	StateReconciling           State = "reconciling"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	// OutcomeSuccess means every article was processed.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means the link map was reconciled but some articles were skipped.
	OutcomePartial Outcome = "partial"
	// OutcomeAborted means the wall-clock budget ran out during the refresh and
	// the link map was not touched.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means the run stopped on an error.
	OutcomeFailed Outcome = "failed"
)

// RunStatus is the result of one reconciliation run.
type RunStatus struct {
	RunID       string
	WorkspaceID string
	State       State
	Outcome     Outcome

	// Skipped counts articles left out of this pass because their embedding
	// could not be refreshed.
	Skipped int
	// Embedded counts articles whose embedding was (re)computed.
	Embedded int
	// Purged counts embeddings deleted for removed or unpublished articles.
	Purged int

	Upserted int
	Deleted  int
	Retired  int

	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Mutations returns the number of link map rows the run changed.
func (s RunStatus) Mutations() int {
	return s.Upserted + s.Deleted + s.Retired
}

// Duration returns how long the run took.
func (s RunStatus) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
