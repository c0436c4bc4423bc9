// Package observability initializes OpenTelemetry tracing and metrics over
// OTLP HTTP. Pipeline workers create a span per stage; the checklist
// aggregator records merge counters.
package observability
