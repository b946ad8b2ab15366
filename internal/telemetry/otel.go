package telemetry

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// Service names reported on exported spans
const (
	APIServiceName    = "taskflow-api"
	WorkerServiceName = "taskflow-worker"
)

// Config selects whether and where spans are exported
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// ShutdownFunc flushes and stops span export
type ShutdownFunc func(ctx context.Context) error

// Setup installs the W3C propagators and, when enabled, an OTLP/HTTP tracer
// provider. The returned ShutdownFunc is always safe to call.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, cfg.ServiceName, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return Shutdown(ctx, tp) }, nil
}

// InitTracer initializes the OpenTelemetry tracer provider
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		serviceName = APIServiceName
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // Collector runs as a sidecar; TLS terminates elsewhere
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// Middleware starts a server span per request named after the matched route template
func Middleware(serviceName string) mux.MiddlewareFunc {
	return otelmux.Middleware(serviceName)
}
