// Package logging sets up log/slog for the worker and the CLI and scopes
// entries to a reconciliation run and workspace.
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	log := logging.WithWorkspace(logging.WithRunID(ctx, slog.Default()), workspaceID)
//	log.Info("reconciliation started")
//
// Errors that may carry connection strings or API keys go through
// SanitizeError before they are logged or printed.
package logging
