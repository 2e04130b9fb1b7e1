//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"trpc.group/trpc-go/trpc-botagent-go/telemetry/metric/histogram"
	"trpc.group/trpc-go/trpc-botagent-go/telemetry/semconv/metrics"
)

// Meter instruments default to no-ops so recording is always safe; the
// telemetry/metric package swaps in real instruments on init.
var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	ChatMeter                   metric.Meter        = MeterProvider.Meter(metrics.MeterNameChat)
	ChatMetricRequestCnt        metric.Int64Counter = noop.Int64Counter{}
	ChatMetricTokenUsage        *histogram.DynamicInt64Histogram
	ChatMetricOperationDuration *histogram.DynamicFloat64Histogram

	ExecuteToolMeter                   metric.Meter        = MeterProvider.Meter(metrics.MeterNameExecuteTool)
	ExecuteToolMetricRequestCnt        metric.Int64Counter = noop.Int64Counter{}
	ExecuteToolMetricOperationDuration *histogram.DynamicFloat64Histogram

	RunAgentMeter                   metric.Meter        = MeterProvider.Meter(metrics.MeterNameRunAgent)
	RunAgentMetricRequestCnt        metric.Int64Counter = noop.Int64Counter{}
	RunAgentMetricOperationDuration *histogram.DynamicFloat64Histogram

	HandoffMeter                   metric.Meter        = MeterProvider.Meter(metrics.MeterNameHandoff)
	HandoffMetricRequestCnt        metric.Int64Counter = noop.Int64Counter{}
	HandoffMetricOperationDuration *histogram.DynamicFloat64Histogram
)

// RecordChat records one model call: request count, duration, and token usage.
func RecordChat(ctx context.Context, modelName string, promptTokens, completionTokens int64, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationChat),
		attribute.String(KeyGenAISystem, SystemBotAgent),
		attribute.String(KeyGenAIRequestModel, modelName),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(KeyErrorType, ValueDefaultErrorType))
	}
	ChatMetricRequestCnt.Add(ctx, 1, metric.WithAttributes(attrs...))
	if ChatMetricOperationDuration != nil {
		ChatMetricOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if ChatMetricTokenUsage != nil {
		ChatMetricTokenUsage.Record(ctx, promptTokens,
			metric.WithAttributes(append(attrs, attribute.String(metrics.KeyGenAITokenType, metrics.KeyBotAgentInputTokenType))...))
		ChatMetricTokenUsage.Record(ctx, completionTokens,
			metric.WithAttributes(append(attrs, attribute.String(metrics.KeyGenAITokenType, metrics.KeyBotAgentOutputTokenType))...))
	}
}

// RecordToolCall records one tool execution.
func RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationExecuteTool),
		attribute.String(KeyGenAISystem, SystemBotAgent),
		attribute.String(KeyGenAIToolName, toolName),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(KeyErrorType, ValueDefaultErrorType))
	}
	ExecuteToolMetricRequestCnt.Add(ctx, 1, metric.WithAttributes(attrs...))
	if ExecuteToolMetricOperationDuration != nil {
		ExecuteToolMetricOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordAgentRun records one complete agent run and how it stopped.
func RecordAgentRun(ctx context.Context, agentName, stoppedReason string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationRunAgent),
		attribute.String(KeyGenAISystem, SystemBotAgent),
		attribute.String(KeyGenAIAgentName, agentName),
		attribute.String(KeyBotAgentStopReason, stoppedReason),
	}
	RunAgentMetricRequestCnt.Add(ctx, 1, metric.WithAttributes(attrs...))
	if RunAgentMetricOperationDuration != nil {
		RunAgentMetricOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordHandoff records one handoff request and its final status.
func RecordHandoff(ctx context.Context, fromAgent, toAgent, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAIOperationName, OperationHandoff),
		attribute.String(KeyGenAISystem, SystemBotAgent),
		attribute.String(KeyBotAgentHandoffFrom, fromAgent),
		attribute.String(KeyBotAgentHandoffTo, toAgent),
		attribute.String(KeyBotAgentHandoffStatus, status),
	}
	HandoffMetricRequestCnt.Add(ctx, 1, metric.WithAttributes(attrs...))
	if HandoffMetricOperationDuration != nil {
		HandoffMetricOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}
