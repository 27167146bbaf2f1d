package util

import (
	"context"

	"autoservice/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultTracerName = "autoservice"

var tracer trace.Tracer

// InitTracer exports spans to Jaeger under the configured service name
func InitTracer(server config.ServerConfig, observ config.ObservabilityConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(observ.JaegerEndpoint)),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(server.Name),
			semconv.DeploymentEnvironment(server.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(server.Name)

	GetLogger().Info("Tracer initialized",
		zap.String("service", server.Name),
		zap.String("endpoint", observ.JaegerEndpoint))
	return tp, nil
}

// GetTracer returns the process tracer; a no-op one until InitTracer runs
func GetTracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer(defaultTracerName)
	}
	return tracer
}

// StartSpan starts a span tagged with attrs
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// OrderAttr tags a span with the order it works on
func OrderAttr(orderID int64) attribute.KeyValue {
	return attribute.Int64("workshop.order_id", orderID)
}

// PartAttr tags a span with the part it works on
func PartAttr(partID int64) attribute.KeyValue {
	return attribute.Int64("workshop.part_id", partID)
}

// FailSpan marks the span failed with err
func FailSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
