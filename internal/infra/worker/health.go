package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"semantic-linker/internal/observability/logging"
)

// HealthServer provides HTTP endpoints for health checks:
//   - /health: liveness probe (always 200 OK)
//   - /health/ready: readiness probe (200 once ready and all checks pass, 503 otherwise)
//
// Readiness changes are forwarded to registered listeners such as the gRPC
// health service.
//
// Example usage:
//
//	healthServer := NewHealthServer(":9091", logger)
//	healthServer.AddCheck("database", func(ctx context.Context) error { return db.PingContext(ctx) })
//	go func() {
//	    if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
//	        logger.Error("health server failed", slog.Any("error", err))
//	    }
//	}()
//	healthServer.SetReady(true)
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	server  *http.Server

	mu        sync.Mutex
	checks    map[string]func(context.Context) error
	listeners []func(ready bool)
}

// healthResponse is the JSON body of both endpoints.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewHealthServer creates a health server listening on addr. It starts not ready.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		addr:    addr,
		logger:  logger,
		isReady: &atomic.Bool{},
		checks:  make(map[string]func(context.Context) error),
	}
}

// AddCheck registers a dependency check evaluated by the readiness probe.
func (h *HealthServer) AddCheck(name string, check func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// OnReadyChange registers fn to be called on every SetReady.
func (h *HealthServer) OnReadyChange(fn func(ready bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Handler returns the probe routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	return mux
}

// Start serves until ctx is cancelled, then shuts down within 5 seconds.
// It returns http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		h.logger.Info("health server listening", slog.String("addr", h.addr))
		served <- h.server.ListenAndServe()
	}()

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server failed", logging.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	h.logger.Info("health server stopped")
	return http.ErrServerClosed
}

// SetReady sets the readiness state and notifies listeners.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))

	h.mu.Lock()
	listeners := append([]func(bool){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(ready)
	}
}

// IsReady reports the readiness flag.
func (h *HealthServer) IsReady() bool {
	return h.isReady.Load()
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		h.write(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}

	h.mu.Lock()
	checks := maps.Clone(h.checks)
	h.mu.Unlock()
	if len(checks) == 0 {
		h.write(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Checks run side by side so one slow dependency does not eat the
	// others' share of the probe timeout.
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
	)
	for name, check := range checks {
		g.Go(func() error {
			result := "ok"
			if err := check(ctx); err != nil {
				result = logging.SanitizeError(err)
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "ok", Checks: results}
	code := http.StatusOK
	for _, result := range results {
		if result != "ok" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	h.write(w, code, resp)
}

func (h *HealthServer) write(w http.ResponseWriter, code int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode health response", logging.Error(err))
	}
}
