//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentName = "trpc.botagent.go"

// OTelExporter replays finished span trees onto an OpenTelemetry tracer,
// preserving the original timestamps and parent-child structure. Use it to
// ship agent traces to an OTLP collector configured via telemetry/trace.
type OTelExporter struct {
	tracer oteltrace.Tracer
}

// NewOTelExporter builds an exporter over the given tracer. A nil tracer
// falls back to the global provider.
func NewOTelExporter(tracer oteltrace.Tracer) *OTelExporter {
	if tracer == nil {
		tracer = otel.Tracer(instrumentName)
	}
	return &OTelExporter{tracer: tracer}
}

// Export implements Exporter.
func (e *OTelExporter) Export(span *Span) {
	if span == nil {
		return
	}
	e.exportTree(context.Background(), span)
}

func (e *OTelExporter) exportTree(ctx context.Context, s *Span) {
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	ctx, otelSpan := e.tracer.Start(ctx, s.Name,
		oteltrace.WithTimestamp(s.StartTime),
		oteltrace.WithSpanKind(otelSpanKind(s.Kind)),
	)
	otelSpan.SetAttributes(attribute.String("span.kind", string(s.Kind)))
	for k, v := range s.Attributes {
		otelSpan.SetAttributes(attribute.String(k, fmt.Sprint(v)))
	}
	if s.Status == StatusError {
		otelSpan.SetStatus(codes.Error, s.Error)
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	for _, c := range s.Children {
		e.exportTree(ctx, c)
	}
	otelSpan.End(oteltrace.WithTimestamp(end))
}

func otelSpanKind(kind Kind) oteltrace.SpanKind {
	if kind == KindLLM {
		return oteltrace.SpanKindClient
	}
	return oteltrace.SpanKindInternal
}

var _ Exporter = (*OTelExporter)(nil)
