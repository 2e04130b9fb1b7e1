//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	itelemetry "trpc.group/trpc-go/trpc-botagent-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-botagent-go/telemetry/semconv/metrics"
)

func TestMetricsEndpointPrecedence(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "custom-metric:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	assert.Equal(t, "custom-metric:4317", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	assert.Equal(t, "generic:4317", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", metricsEndpoint("grpc"))
	assert.Equal(t, "localhost:4318", metricsEndpoint("http"))
}

func TestInitMeterProvider(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	require.NoError(t, InitMeterProvider(mp))
	assert.Equal(t, mp, GetMeterProvider())

	// All meters and instruments must be wired after init.
	require.NotNil(t, itelemetry.ChatMeter)
	require.NotNil(t, itelemetry.ChatMetricTokenUsage)
	require.NotNil(t, itelemetry.ChatMetricOperationDuration)
	require.NotNil(t, itelemetry.ExecuteToolMetricOperationDuration)
	require.NotNil(t, itelemetry.RunAgentMetricOperationDuration)
	require.NotNil(t, itelemetry.HandoffMetricOperationDuration)
}

func TestRecordHelpersAfterInit(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()
	require.NoError(t, InitMeterProvider(mp))

	ctx := context.Background()
	assert.NotPanics(t, func() {
		itelemetry.RecordChat(ctx, "gpt-4o-mini", 120, 48, 800*time.Millisecond, nil)
		itelemetry.RecordChat(ctx, "gpt-4o-mini", 0, 0, time.Second, errors.New("model overloaded"))
		itelemetry.RecordToolCall(ctx, "search_docs", 20*time.Millisecond, nil)
		itelemetry.RecordToolCall(ctx, "search_docs", 20*time.Millisecond, errors.New("timeout"))
		itelemetry.RecordAgentRun(ctx, "support-bot", "final_answer", 2*time.Second)
		itelemetry.RecordHandoff(ctx, "support-bot", "billing-bot", "completed", 150*time.Millisecond)
	})
}

func TestSetHistogramBuckets(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()
	require.NoError(t, InitMeterProvider(mp))

	err := SetHistogramBuckets(
		metrics.MeterNameChat,
		metrics.MetricGenAIClientTokenUsage,
		[]float64{1, 64, 256, 1024, 4096, 16384},
	)
	require.NoError(t, err)

	err = SetHistogramBuckets(
		metrics.MeterNameChat,
		metrics.MetricGenAIClientOperationDuration,
		[]float64{0.1, 0.5, 1, 5, 10},
	)
	require.NoError(t, err)

	err = SetHistogramBuckets(
		metrics.MeterNameExecuteTool,
		metrics.MetricGenAIClientOperationDuration,
		[]float64{0.01, 0.1, 1},
	)
	require.NoError(t, err)

	err = SetHistogramBuckets("no-such-meter", metrics.MetricGenAIClientOperationDuration, []float64{1})
	assert.Error(t, err)

	err = SetHistogramBuckets(metrics.MeterNameChat, "no-such-metric", []float64{1})
	assert.Error(t, err)

	err = SetHistogramBuckets(metrics.MeterNameHandoff, metrics.MetricGenAIClientTokenUsage, []float64{1})
	assert.Error(t, err)
}

func TestNewMeterProvider(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	// gRPC exporter construction is lazy, so no collector is required.
	mp, err := NewMeterProvider(context.Background())
	require.NoError(t, err)
	require.NotNil(t, mp)
	_ = mp.Shutdown(context.Background())

	mp, err = NewMeterProvider(context.Background(),
		WithProtocol("http"),
		WithEndpoint("localhost:4318"),
		WithServiceName("metric-test"),
	)
	require.NoError(t, err)
	require.NotNil(t, mp)
	_ = mp.Shutdown(context.Background())
}
