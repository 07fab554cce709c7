// Package tracing provides OpenTelemetry tracing for sync sessions,
// listeners and outbound bus calls. Exporters: none, stdout, OTLP over HTTP.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the instrumentation name.
	TracerName = "github.com/jbctechsolutions/connectsync"

	// Version is the instrumentation version.
	Version = "0.3.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns the default tracing configuration (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "connectsync",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with sync-specific spans.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

var (
	global     *Tracer
	globalOnce sync.Once
)

// Init initializes the global tracer with the provided configuration.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	var err error
	globalOnce.Do(func() {
		global, err = New(ctx, cfg)
	})
	return global, err
}

// Default returns the global tracer, or a no-op tracer if not initialized.
func Default() *Tracer {
	if global == nil {
		return Noop()
	}
	return global
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{
		tracer: noop.NewTracerProvider().Tracer(TracerName),
		config: DefaultConfig(),
	}
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		t := Noop()
		t.config = cfg
		return t, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Not merged with resource.Default(): its schema URL can conflict with semconv v1.26.0.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(provider)

	return NewWithProvider(provider, cfg), nil
}

// NewWithProvider wraps an existing SDK provider. Tests use it with a span recorder.
func NewWithProvider(provider *sdktrace.TracerProvider, cfg Config) *Tracer {
	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Domain-specific span helpers ---

// SyncSpan covers one sync sequence from first pull to completion.
type SyncSpan struct {
	span  trace.Span
	items int
	once  sync.Once
}

// StartSyncSpan starts a span for a sync sequence.
func (t *Tracer) StartSyncSpan(ctx context.Context, profile, deviceID string, threadID int64) (context.Context, *SyncSpan) {
	attrs := []attribute.KeyValue{
		attribute.String("sync.profile", profile),
		attribute.String("sync.device_id", deviceID),
	}
	if threadID != 0 {
		attrs = append(attrs, attribute.Int64("sync.thread_id", threadID))
	}
	ctx, span := t.tracer.Start(ctx, "sync.session",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &SyncSpan{span: span}
}

// Phase records a phase transition.
func (s *SyncSpan) Phase(name string) {
	s.span.AddEvent("sync.phase", trace.WithAttributes(attribute.String("sync.phase", name)))
}

// Item counts an emitted item.
func (s *SyncSpan) Item() {
	s.items++
}

// Reconnect records a connection epoch change.
func (s *SyncSpan) Reconnect(epoch int, cause error) {
	attrs := []attribute.KeyValue{attribute.Int("sync.epoch", epoch)}
	if cause != nil {
		attrs = append(attrs, attribute.String("error", cause.Error()))
	}
	s.span.AddEvent("sync.reconnect", trace.WithAttributes(attrs...))
}

// End ends the span with the completion reason. Safe to call more than once.
func (s *SyncSpan) End(reason string, received int, total uint64, elapsed time.Duration) {
	s.once.Do(func() {
		s.span.SetAttributes(
			attribute.String("sync.reason", reason),
			attribute.Int("sync.items", s.items),
			attribute.Int("sync.received", received),
			attribute.Int64("sync.store_total", int64(total)),
			attribute.Int64("sync.elapsed_ms", elapsed.Milliseconds()),
		)
		s.span.SetStatus(codes.Ok, "sync completed")
		s.span.End()
	})
}

// Abort ends the span for a sequence closed before completion.
func (s *SyncSpan) Abort(err error) {
	s.once.Do(func() {
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.SetAttributes(attribute.Int("sync.items", s.items))
		s.span.End()
	})
}

// ListenerSpan covers one listener connection epoch.
type ListenerSpan struct {
	span trace.Span
}

// StartListenerSpan starts a span for a listener epoch.
func (t *Tracer) StartListenerSpan(ctx context.Context, name string, rules int) (context.Context, *ListenerSpan) {
	ctx, span := t.tracer.Start(ctx, "listener.epoch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("listener.name", name),
			attribute.Int("listener.rules", rules),
		),
	)
	return ctx, &ListenerSpan{span: span}
}

// Emitted records an emitted event kind.
func (l *ListenerSpan) Emitted(kind string) {
	l.span.AddEvent("listener.emit", trace.WithAttributes(attribute.String("event.kind", kind)))
}

// End ends the epoch; err is the cause of the disconnect, if any.
func (l *ListenerSpan) End(err error) {
	if err != nil {
		l.span.RecordError(err)
	}
	l.span.End()
}

// StartCallSpan starts a client span for an outbound bus call.
func (t *Tracer) StartCallSpan(ctx context.Context, path, method string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "bus.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("bus.path", path),
			attribute.String("bus.method", method),
		),
	)
}

// EndCallSpan finishes a span from StartCallSpan.
func EndCallSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
}
