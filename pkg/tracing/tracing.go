package tracing

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

type Config struct {
	// host:port of an OTLP gRPC collector; spans are not exported when empty
	Endpoint    string  `yaml:"endpoint" envconfig:"LENDING_OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure" envconfig:"LENDING_OTLP_INSECURE" default:"true"`
	ServiceName string  `yaml:"serviceName" envconfig:"LENDING_SERVICE_NAME" default:"lending"`
	SampleRatio float64 `yaml:"sampleRatio" envconfig:"LENDING_TRACE_SAMPLE_RATIO" default:"1"`
}

// NewProvider builds a tracer provider for cfg. Extra options are applied last,
// so tests can attach their own span processors.
func NewProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "resource.New")
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	if cfg.Endpoint != "" {
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "otlptracegrpc.New")
		}
		base = append(base, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(append(base, opts...)...), nil
}

// Install makes tp the global provider and propagates W3C trace context.
func Install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}
