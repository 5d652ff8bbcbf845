// Package telemetry provides the ambient observability stack shared by
// the governance components: a structured JSON logger, and an OpenTelemetry
// Observer wiring meter and tracer providers behind pluggable exporters
// (otlp, prometheus, stdout).
//
// Components accept a Logger in their configuration and fall back to
// NopLogger when none is given. The metrics collector can additionally be
// handed Observer.Meter() to mirror its counters into OpenTelemetry
// instruments.
//
//	obs, err := telemetry.NewObserver(ctx, telemetry.Config{
//	    ServiceName: "payments",
//	    Metrics:     telemetry.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     telemetry.LoggingConfig{Enabled: true, Level: "info"},
//	})
package telemetry
