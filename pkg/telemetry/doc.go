// Package telemetry provides the observability plumbing for kzwarden:
// structured logging with zerolog, Prometheus run metrics and optional
// OpenTelemetry tracing.
//
// kzwarden runs as a short-lived job before the game server starts, so
// metrics are not served over HTTP. They are written once per run to a
// Prometheus textfile that a node exporter can pick up:
//
//	metrics, err := telemetry.NewMetrics(cfg.Metrics)
//	if err != nil {
//	    return err
//	}
//	defer metrics.WriteTextfile()
//
// Tracing is off by default. With the stdout exporter every run phase and
// manifest item becomes a span:
//
//	tracer, err := telemetry.NewTracer(cfg.Tracing, "kzwarden", version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartItemSpan(ctx, "config", "game/csgo/cfg/server.cfg")
//	defer span.End()
package telemetry
