// Copyright 2026 fanjia1024
// OpenTelemetry integration for recording sessions and replays

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tracereplay"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer 并设为全局 provider；调用方负责 Shutdown
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartSessionSpan 开始录制会话 span，Finish 时结束
func StartSessionSpan(ctx context.Context, destination string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "recording.session",
		trace.WithAttributes(
			attribute.String("recording.destination", destination),
		),
	)
}

// StartDispatchSpan 开始单次 action 派发 span
func StartDispatchSpan(ctx context.Context, dispatch int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "recording.dispatch",
		trace.WithAttributes(
			attribute.Int("recording.dispatch", dispatch),
		),
	)
}

// StartReplaySpan 开始一次完整回放 span
func StartReplaySpan(ctx context.Context, events int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "replay.run",
		trace.WithAttributes(
			attribute.Int("replay.events", events),
		),
	)
}

// QuantumEvent 在回放 span 上记录单个 Quantum 的结果
func QuantumEvent(span trace.Span, quantum int, result string) {
	span.AddEvent("replay.quantum", trace.WithAttributes(
		attribute.Int("replay.quantum", quantum),
		attribute.String("replay.result", result),
	))
}
