// internal/pkg/tracing/tracer.go
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"agrinexus/internal/pkg/logger"
)

const (
	ExporterJaeger = "jaeger"
	ExporterOTLP   = "otlp"
)

// Options 描述 TracerProvider 的导出方式。
type Options struct {
	ServiceName string
	Exporter    string // jaeger | otlp
	Endpoint    string // jaeger collector URL 或 otlp http 地址 (host:port)
	SampleRatio float64
}

// InitTracerProvider 初始化并注册全局 TracerProvider。
func InitTracerProvider(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		// 使用批处理 Span 处理器，提高性能
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
		)),
	)

	otel.SetTracerProvider(tp)
	// 设置全局的 TextMapPropagator，用于在服务间（HTTP / Kafka Header）传递上下文
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Ctx(ctx).Info().
		Str("exporter", opts.Exporter).
		Str("endpoint", opts.Endpoint).
		Msgf("Tracing initialized for service '%s'", opts.ServiceName)
	return tp, nil
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", ExporterJaeger:
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	case ExporterOTLP:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
	}
}

// GetTraceIDFromContext 返回当前 Span 的 trace id，没有时返回空串。
func GetTraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
