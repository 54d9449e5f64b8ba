// Package observability initializes OpenTelemetry tracing and metrics for
// the transcription service and exposes the pipeline's instruments.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/memovox/logger"
)

const tracerName = "github.com/skillsenselab/memovox"

// Config configures the OTLP exporters.
type Config struct {
	// Enabled turns telemetry export on. When false, Init is a no-op and the
	// global no-op providers stay in place.
	Enabled bool `mapstructure:"enabled"`
	// ServiceName is the reported service name.
	ServiceName string `mapstructure:"service_name"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint string `mapstructure:"endpoint"`
	// Insecure allows plain-HTTP export (for development).
	Insecure bool `mapstructure:"insecure"`
	// MetricInterval is the metric export interval.
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "memovox"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Shutdown tears down the providers created by Init.
type Shutdown func(ctx context.Context) error

// Init sets up the global tracer and meter providers. The returned Shutdown
// flushes and stops both; it is safe to call when telemetry is disabled.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("telemetry initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
	))

	return func(ctx context.Context) error {
		mpErr := mp.Shutdown(ctx)
		tpErr := tp.Shutdown(ctx)
		if tpErr != nil {
			return tpErr
		}
		return mpErr
	}, nil
}

// StartSpan starts a new span using the service tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// SetSpanError records an error on the current span in context.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() {
		span.RecordError(err)
	}
}

// SetSpanAttribute sets a string attribute on the current span in context.
func SetSpanAttribute(ctx context.Context, key, value string) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() {
		span.SetAttributes(attribute.String(key, value))
	}
}

// PipelineMetrics holds the instruments the job queue records.
type PipelineMetrics struct {
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
	queueDepth  metric.Int64UpDownCounter
}

// NewPipelineMetrics creates the pipeline instruments on the global meter.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter(tracerName)

	jobsTotal, err := meter.Int64Counter("transcription.jobs.total",
		metric.WithDescription("Transcription jobs processed, by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("transcription.job.duration",
		metric.WithDescription("Wall-clock duration of one transcription job in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job duration histogram: %w", err)
	}

	queueDepth, err := meter.Int64UpDownCounter("transcription.queue.depth",
		metric.WithDescription("Jobs currently waiting in the queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue depth counter: %w", err)
	}

	return &PipelineMetrics{
		jobsTotal:   jobsTotal,
		jobDuration: jobDuration,
		queueDepth:  queueDepth,
	}, nil
}

// RecordJob records one finished job.
func (m *PipelineMetrics) RecordJob(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.jobsTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddQueueDepth adjusts the waiting-jobs gauge.
func (m *PipelineMetrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}
