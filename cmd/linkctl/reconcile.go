package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/observability/logging"
	"semantic-linker/internal/usecase/reconcile"
)

// runOutput is the JSON form of a reconciliation status.
type runOutput struct {
	Workspace string  `json:"workspace"`
	RunID     string  `json:"run_id,omitempty"`
	Outcome   string  `json:"outcome"`
	Embedded  int     `json:"embedded"`
	Skipped   int     `json:"skipped"`
	Purged    int     `json:"purged"`
	Upserted  int     `json:"upserted"`
	Deleted   int     `json:"deleted"`
	Retired   int     `json:"retired"`
	Seconds   float64 `json:"duration_seconds"`
	Error     string  `json:"error,omitempty"`
}

func NewReconcileCmd(engine EngineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the link map of one or all workspaces",
		Long: `Refresh embeddings, recompute similarity, select links and write the
difference to the link map. Exits non-zero when any run fails or aborts.`,
		Args: cobra.NoArgs,
		RunE: makeReconcileRunner(engine),
	}

	cmd.Flags().StringP("workspace", "w", "", "Workspace to reconcile")
	cmd.Flags().Bool("all", false, "Reconcile every workspace")
	cmd.Flags().IntP("concurrency", "c", 4, "Workspaces reconciled in parallel with --all")
	cmd.MarkFlagsMutuallyExclusive("workspace", "all")
	cmd.MarkFlagsOneRequired("workspace", "all")
	return cmd
}

func makeReconcileRunner(engine EngineFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")
		all, _ := cmd.Flags().GetBool("all")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		eng, err := engine(cmd.Context())
		if err != nil {
			return err
		}

		var statuses []reconcile.RunStatus
		if all {
			statuses, err = eng.Runner.RunAll(cmd.Context(), concurrency)
			if err != nil {
				return fmt.Errorf("reconcile all: %w", err)
			}
		} else {
			status, err := eng.Runner.Trigger(cmd.Context(), workspace)
			if errors.Is(err, entity.ErrRunInProgress) {
				return fmt.Errorf("workspace %s: %w", workspace, err)
			}
			statuses = []reconcile.RunStatus{status}
		}

		outputs := make([]runOutput, 0, len(statuses))
		failed := 0
		for _, st := range statuses {
			out := toRunOutput(st)
			if out.Outcome != string(reconcile.OutcomeSuccess) && out.Outcome != string(reconcile.OutcomePartial) {
				failed++
			}
			outputs = append(outputs, out)
		}

		if wantJSON(cmd) {
			if err := writeJSON(cmd, outputs); err != nil {
				return err
			}
		} else {
			for _, o := range outputs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tembedded=%d skipped=%d purged=%d upserted=%d deleted=%d retired=%d\t%.1fs\n",
					o.Workspace, o.Outcome, o.Embedded, o.Skipped, o.Purged, o.Upserted, o.Deleted, o.Retired, o.Seconds)
				if o.Error != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", o.Workspace, o.Error)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d workspace runs did not complete", failed, len(outputs))
		}
		return nil
	}
}

func toRunOutput(st reconcile.RunStatus) runOutput {
	out := runOutput{
		Workspace: st.WorkspaceID,
		RunID:     st.RunID,
		Outcome:   string(st.Outcome),
		Embedded:  st.Embedded,
		Skipped:   st.Skipped,
		Purged:    st.Purged,
		Upserted:  st.Upserted,
		Deleted:   st.Deleted,
		Retired:   st.Retired,
	}
	if st.Outcome == "" {
		out.Outcome = "busy"
	}
	if !st.FinishedAt.IsZero() {
		out.Seconds = st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond).Seconds()
	}
	if st.Err != nil {
		out.Error = logging.SanitizeError(st.Err)
	}
	return out
}
