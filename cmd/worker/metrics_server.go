package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semantic-linker/internal/app"
	"semantic-linker/internal/observability/logging"
	"semantic-linker/internal/usecase/reconcile"
)

// WorkspaceStatus is the /status view of one workspace.
type WorkspaceStatus struct {
	Workspace  string     `json:"workspace"`
	State      string     `json:"state"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	Skipped    int        `json:"skipped"`
	Mutations  int        `json:"mutations"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusResponse lists the reconciliation status of every workspace.
type StatusResponse struct {
	ModelVersion string            `json:"model_version"`
	Workspaces   []WorkspaceStatus `json:"workspaces"`
}

// statusSource is the part of the engine the status endpoint reads.
type statusSource interface {
	Workspaces(ctx context.Context) ([]string, error)
	State(workspaceID string) reconcile.State
	LastStatus(workspaceID string) (reconcile.RunStatus, bool)
	ModelVersion() string
}

type engineStatus struct{ *app.App }

func (e engineStatus) Workspaces(ctx context.Context) ([]string, error) {
	return e.Job.Workspaces(ctx)
}

func (e engineStatus) State(ws string) reconcile.State { return e.Runner.State(ws) }

func (e engineStatus) LastStatus(ws string) (reconcile.RunStatus, bool) {
	return e.Runner.LastStatus(ws)
}

func (e engineStatus) ModelVersion() string { return e.Embeddings.CurrentModelVersion() }

// startMetricsServer starts the Prometheus metrics HTTP server on port.
//
// The server exposes:
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /status - per-workspace reconciliation state and last outcome
//
// When ctx is canceled the server shuts down within 5 seconds.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, engine *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", statusHandler(engineStatus{engine}, logger))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Error(err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// statusHandler serves GET /status. It returns 503 when the workspace list
// cannot be read.
func statusHandler(src statusSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		workspaces, err := src.Workspaces(r.Context())
		if err != nil {
			logger.Error("list workspaces for status", logging.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "workspaces unavailable"})
			return
		}

		resp := StatusResponse{
			ModelVersion: src.ModelVersion(),
			Workspaces:   make([]WorkspaceStatus, 0, len(workspaces)),
		}
		for _, ws := range workspaces {
			st := WorkspaceStatus{Workspace: ws, State: string(src.State(ws))}
			if last, ok := src.LastStatus(ws); ok {
				finished := last.FinishedAt
				st.LastRunID = last.RunID
				st.Outcome = string(last.Outcome)
				st.Skipped = last.Skipped
				st.Mutations = last.Mutations()
				st.FinishedAt = &finished
				if last.Err != nil {
					st.Error = logging.SanitizeError(last.Err)
				}
			}
			resp.Workspaces = append(resp.Workspaces, st)
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
