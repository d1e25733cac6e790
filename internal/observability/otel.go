// Package observability sets up OpenTelemetry tracing for the API server and
// the translation worker. Both binaries export to the same collector and are
// told apart by the chat.component resource attribute.
package observability

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/owenstack/chat/internal/config"
)

// Component names the process reporting spans.
type Component string

const (
	ComponentAPI    Component = "api"
	ComponentWorker Component = "worker"
)

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// Build identifies the running binary.
type Build struct {
	Version   string
	Component Component
}

// Test seams.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName string, build Build) (*resource.Resource, error) {
		attrs := []attribute.KeyValue{
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(build.Version),
			attribute.String("chat.component", string(build.Component)),
		}
		if host, err := os.Hostname(); err == nil {
			attrs = append(attrs, semconv.ServiceInstanceID(host))
		}
		return resource.New(ctx,
			resource.WithAttributes(attrs...),
			resource.WithProcessRuntimeName(),
			resource.WithProcessRuntimeVersion(),
		)
	}
)

func noop(context.Context) error { return nil }

// Setup configures the global tracer provider and W3C propagators. When
// tracing is disabled it installs nothing and returns a no-op Shutdown.
// Globals are only replaced once every step succeeded.
func Setup(ctx context.Context, cfg config.OTELConfig, build Build) (Shutdown, error) {
	if !cfg.Enabled {
		return noop, nil
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("otel: exporter endpoint is empty")
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := newServiceResourceFn(ctx, cfg.ServiceName, build)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// ShutdownWithin runs sd with a fresh deadline of d, for use after the
// process context has already been canceled.
func ShutdownWithin(sd Shutdown, d time.Duration) error {
	if sd == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sd(ctx)
}
