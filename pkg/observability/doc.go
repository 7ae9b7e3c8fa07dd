// Package observability provides OpenTelemetry tracing and RED metrics for
// the conformance engine.
//
// Initialize at startup and hand the provider to the engine:
//
//	p, err := observability.New(ctx, &observability.Config{
//		ServiceName:  "conformance",
//		OTLPEndpoint: "otel-collector:4317",
//		Enabled:      true,
//	})
//	defer p.Shutdown(ctx)
//
// Wrap an operation:
//
//	ctx, done := p.TrackOperation(ctx, "explainer.contradiction",
//		observability.SearchOperation(n, 0, 10, "product")...)
//	defer func() { done(err) }()
//
// A nil or disabled provider records nothing, so callers never need to
// check whether telemetry is configured.
package observability
