// Package main provides linkctl, the operator CLI of the semantic linker.
//
// Usage:
//
//	linkctl migrate up|down
//	linkctl reconcile --workspace ws-1 | --all
//	linkctl neighbors <workspace> <article> [-k 10]
//	linkctl links <workspace> [--filter applied|candidate|retired|all]
//	linkctl apply <edge-id> [--from-post P --to-post Q]
//	linkctl render <article> --file article.html [--dry-run]
//	linkctl purge <workspace> <article>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"semantic-linker/internal/observability/logging"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewTextLogger()
	slog.SetDefault(logger)

	sess := newSession(logger)
	rootCmd := NewRootCmd(version, sess.Engine, sess.DB)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := sess.Close(); cerr != nil {
		logger.Error("failed to release resources", slog.Any("error", cerr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}
}
