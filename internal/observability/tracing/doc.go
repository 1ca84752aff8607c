// Package tracing provides OpenTelemetry tracing for reconciliation runs.
//
// Each run opens a root span per workspace and one child span per phase.
// The worker installs an SDK tracer provider at startup with InitProvider.
//
// Example usage:
//
//	shutdown := tracing.InitProvider()
//	defer func() { _ = shutdown(context.Background()) }()
//
//	ctx, span := tracing.StartSpan(ctx, "reconcile.selecting", workspaceID)
//	err := selectLinks(ctx)
//	tracing.EndSpan(span, err)
package tracing
