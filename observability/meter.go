package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/skillsenselab/workshopkit/logger"
)

// newResource builds the service resource shared by the meter and
// tracer providers.
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", environment),
		),
	)
}

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds metric instruments for the segment pipeline.
type PipelineMetrics struct {
	segmentsProcessed  metric.Int64Counter
	segmentsFailed     metric.Int64Counter
	stageDuration      metric.Float64Histogram
	snapshotsPublished metric.Int64Counter
	mergeConflicts     metric.Int64Counter
}

// NewPipelineMetrics creates pipeline metric instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	segmentsProcessed, err := meter.Int64Counter("segment.processed",
		metric.WithDescription("Segments that completed the full pipeline"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segment.processed counter: %w", err)
	}

	segmentsFailed, err := meter.Int64Counter("segment.failed",
		metric.WithDescription("Segments that failed a pipeline stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segment.failed counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("segment.stage.duration",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segment.stage.duration histogram: %w", err)
	}

	snapshotsPublished, err := meter.Int64Counter("snapshot.published",
		metric.WithDescription("Checklist snapshots published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot.published counter: %w", err)
	}

	mergeConflicts, err := meter.Int64Counter("snapshot.merge_conflict",
		metric.WithDescription("Snapshot publishes that lost an optimistic-concurrency race"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot.merge_conflict counter: %w", err)
	}

	return &PipelineMetrics{
		segmentsProcessed:  segmentsProcessed,
		segmentsFailed:     segmentsFailed,
		stageDuration:      stageDuration,
		snapshotsPublished: snapshotsPublished,
		mergeConflicts:     mergeConflicts,
	}, nil
}

// RecordSegmentProcessed increments the processed-segment counter.
func (m *PipelineMetrics) RecordSegmentProcessed(ctx context.Context) {
	if m == nil {
		return
	}
	m.segmentsProcessed.Add(ctx, 1)
}

// RecordSegmentFailed increments the failed-segment counter for a stage.
func (m *PipelineMetrics) RecordSegmentFailed(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.segmentsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordStageDuration records how long a pipeline stage took.
func (m *PipelineMetrics) RecordStageDuration(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrStage, stage)))
}

// RecordSnapshotPublished increments the published-snapshot counter.
func (m *PipelineMetrics) RecordSnapshotPublished(ctx context.Context) {
	if m == nil {
		return
	}
	m.snapshotsPublished.Add(ctx, 1)
}

// RecordMergeConflict increments the merge-conflict counter.
func (m *PipelineMetrics) RecordMergeConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.mergeConflicts.Add(ctx, 1)
}
