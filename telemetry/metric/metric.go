//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric provides metrics collection for the agent runtime. It
// integrates with OpenTelemetry and ships measurements to an OTLP collector.
package metric

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	itelemetry "trpc.group/trpc-go/trpc-botagent-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-botagent-go/telemetry/metric/histogram"
	"trpc.group/trpc-go/trpc-botagent-go/telemetry/semconv/metrics"
)

// InitMeterProvider initializes the meter provider and the runtime's meters.
func InitMeterProvider(mp metric.MeterProvider) error {
	itelemetry.MeterProvider = mp

	itelemetry.ChatMeter = mp.Meter(metrics.MeterNameChat)
	var err error
	if itelemetry.ChatMetricRequestCnt, err = itelemetry.ChatMeter.Int64Counter(
		metrics.MetricBotAgentClientRequestCnt,
		metric.WithDescription("Total number of model requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create chat metric BotAgentClientRequestCnt: %w", err)
	}
	if itelemetry.ChatMetricTokenUsage, err = histogram.NewDynamicInt64Histogram(
		mp,
		metrics.MeterNameChat,
		metrics.MetricGenAIClientTokenUsage,
		metric.WithDescription("Token usage for client"),
		metric.WithUnit("{token}"),
	); err != nil {
		return fmt.Errorf("failed to create chat metric GenAIClientTokenUsage: %w", err)
	}
	if itelemetry.ChatMetricOperationDuration, err = histogram.NewDynamicFloat64Histogram(
		mp,
		metrics.MeterNameChat,
		metrics.MetricGenAIClientOperationDuration,
		metric.WithDescription("Duration of model call"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create chat metric GenAIClientOperationDuration: %w", err)
	}

	itelemetry.ExecuteToolMeter = mp.Meter(metrics.MeterNameExecuteTool)
	if itelemetry.ExecuteToolMetricRequestCnt, err = itelemetry.ExecuteToolMeter.Int64Counter(
		metrics.MetricBotAgentClientRequestCnt,
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create execute tool metric BotAgentClientRequestCnt: %w", err)
	}
	if itelemetry.ExecuteToolMetricOperationDuration, err = histogram.NewDynamicFloat64Histogram(
		mp,
		metrics.MeterNameExecuteTool,
		metrics.MetricGenAIClientOperationDuration,
		metric.WithDescription("Duration of tool execution"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create execute tool metric GenAIClientOperationDuration: %w", err)
	}

	itelemetry.RunAgentMeter = mp.Meter(metrics.MeterNameRunAgent)
	if itelemetry.RunAgentMetricRequestCnt, err = itelemetry.RunAgentMeter.Int64Counter(
		metrics.MetricBotAgentClientRequestCnt,
		metric.WithDescription("Total number of agent runs"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create run agent metric BotAgentClientRequestCnt: %w", err)
	}
	if itelemetry.RunAgentMetricOperationDuration, err = histogram.NewDynamicFloat64Histogram(
		mp,
		metrics.MeterNameRunAgent,
		metrics.MetricGenAIClientOperationDuration,
		metric.WithDescription("Duration of agent run"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create run agent metric GenAIClientOperationDuration: %w", err)
	}

	itelemetry.HandoffMeter = mp.Meter(metrics.MeterNameHandoff)
	if itelemetry.HandoffMetricRequestCnt, err = itelemetry.HandoffMeter.Int64Counter(
		metrics.MetricBotAgentClientRequestCnt,
		metric.WithDescription("Total number of handoff requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create handoff metric BotAgentClientRequestCnt: %w", err)
	}
	if itelemetry.HandoffMetricOperationDuration, err = histogram.NewDynamicFloat64Histogram(
		mp,
		metrics.MeterNameHandoff,
		metrics.MetricGenAIClientOperationDuration,
		metric.WithDescription("Duration of handoff"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create handoff metric GenAIClientOperationDuration: %w", err)
	}

	return nil
}

// GetMeterProvider returns the meter provider.
func GetMeterProvider() metric.MeterProvider {
	return itelemetry.MeterProvider
}

// SetHistogramBuckets updates bucket boundaries for a specific histogram
// metric. This creates a new instrument; old data is not migrated.
func SetHistogramBuckets(meterName string, metricName string, boundaries []float64) error {
	var h interface{ SetBuckets([]float64) error }
	switch meterName {
	case metrics.MeterNameChat:
		switch metricName {
		case metrics.MetricGenAIClientTokenUsage:
			if itelemetry.ChatMetricTokenUsage == nil {
				return fmt.Errorf("chat metric %s not initialized", metricName)
			}
			h = itelemetry.ChatMetricTokenUsage
		case metrics.MetricGenAIClientOperationDuration:
			if itelemetry.ChatMetricOperationDuration == nil {
				return fmt.Errorf("chat metric %s not initialized", metricName)
			}
			h = itelemetry.ChatMetricOperationDuration
		default:
			return fmt.Errorf("unknown or unsupported chat histogram metric: %s", metricName)
		}
	case metrics.MeterNameExecuteTool:
		if metricName != metrics.MetricGenAIClientOperationDuration {
			return fmt.Errorf("unknown or unsupported execute tool histogram metric: %s", metricName)
		}
		if itelemetry.ExecuteToolMetricOperationDuration == nil {
			return fmt.Errorf("execute tool metric %s not initialized", metricName)
		}
		h = itelemetry.ExecuteToolMetricOperationDuration
	case metrics.MeterNameRunAgent:
		if metricName != metrics.MetricGenAIClientOperationDuration {
			return fmt.Errorf("unknown or unsupported run agent histogram metric: %s", metricName)
		}
		if itelemetry.RunAgentMetricOperationDuration == nil {
			return fmt.Errorf("run agent metric %s not initialized", metricName)
		}
		h = itelemetry.RunAgentMetricOperationDuration
	case metrics.MeterNameHandoff:
		if metricName != metrics.MetricGenAIClientOperationDuration {
			return fmt.Errorf("unknown or unsupported handoff histogram metric: %s", metricName)
		}
		if itelemetry.HandoffMetricOperationDuration == nil {
			return fmt.Errorf("handoff metric %s not initialized", metricName)
		}
		h = itelemetry.HandoffMetricOperationDuration
	default:
		return fmt.Errorf("unknown or unsupported meter name: %s", meterName)
	}
	return h.SetBuckets(boundaries)
}

// NewMeterProvider creates a new meter provider with optional configuration.
// The environment variables described below can be used for Endpoint configuration.
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (default: "localhost:4317")
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	options := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.metricsEndpoint == "" {
		options.metricsEndpoint = metricsEndpoint(options.protocol)
	}

	res, err := buildResource(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var meterProvider *sdkmetric.MeterProvider
	switch options.protocol {
	case itelemetry.ProtocolHTTP:
		meterProvider, err = newHTTPMeterProvider(ctx, res, options.metricsEndpoint)
	default:
		meterProvider, err = newGRPCMeterProvider(ctx, res, options.metricsEndpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	return meterProvider, nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	switch protocol {
	case itelemetry.ProtocolHTTP:
		return "localhost:4318" // HTTP endpoint base URL (otlpmetrichttp adds /v1/metrics).
	default:
		return "localhost:4317" // gRPC endpoint (host:port).
	}
}

func newHTTPMeterProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdkmetric.MeterProvider, error) {
	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	), nil
}

func newGRPCMeterProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdkmetric.MeterProvider, error) {
	metricsConn, err := itelemetry.NewGRPCConn(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics connection: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(metricsConn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	), nil
}

// Option is a function that configures meter options.
type Option func(*options)

// options holds the configuration options for meter.
type options struct {
	metricsEndpoint    string
	serviceName        string
	serviceVersion     string
	serviceNamespace   string
	protocol           string
	resourceAttributes *[]attribute.KeyValue
}

// WithEndpoint sets the metrics endpoint (host and port) the exporter will
// connect to, e.g. "example.com:4317" (no scheme or path). When unset, the
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT
// environment variables are consulted, in that order.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol sets the protocol to use for metrics export.
// Supported protocols are "grpc" (default) and "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(serviceName string) Option {
	return func(opts *options) {
		opts.serviceName = serviceName
	}
}

// WithServiceNamespace overrides the service.namespace resource attribute.
func WithServiceNamespace(serviceNamespace string) Option {
	return func(opts *options) {
		opts.serviceNamespace = serviceNamespace
	}
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(serviceVersion string) Option {
	return func(opts *options) {
		opts.serviceVersion = serviceVersion
	}
}

// WithResourceAttributes appends custom resource attributes.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(opts *options) {
		if len(attrs) == 0 {
			return
		}
		if opts.resourceAttributes == nil {
			opts.resourceAttributes = &[]attribute.KeyValue{}
		}
		*opts.resourceAttributes = append(*opts.resourceAttributes, attrs...)
	}
}

func buildResource(ctx context.Context, options *options) (*resource.Resource, error) {
	resourceOpts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	}

	if options.resourceAttributes != nil && len(*options.resourceAttributes) > 0 {
		resourceOpts = append(resourceOpts, resource.WithAttributes(*options.resourceAttributes...))
	}

	return resource.New(ctx, resourceOpts...)
}
