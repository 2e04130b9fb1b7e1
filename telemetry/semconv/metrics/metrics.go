//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metrics defines metric name constants following OpenTelemetry semantic conventions.
package metrics

const (
	// KeyGenAITokenType represents the type of token.
	KeyGenAITokenType = "gen_ai.token.type" // #nosec G101 - this is a metric key name, not a credential.
	// KeyBotAgentInputTokenType represents the type of input token.
	KeyBotAgentInputTokenType = "input" // #nosec G101 - this is a metric key name, not a credential.
	// KeyBotAgentOutputTokenType represents the type of output token.
	KeyBotAgentOutputTokenType = "output" // #nosec G101 - this is a metric key name, not a credential.
	// KeyMetricName represents the name of the metric.
	KeyMetricName = "metric.name"

	// MetricGenAIClientTokenUsage represents the usage of client token.
	MetricGenAIClientTokenUsage = "gen_ai.client.token.usage" // #nosec G101 - this is a metric key name, not a credential.
	// MetricGenAIClientOperationDuration represents the duration of client operation.
	MetricGenAIClientOperationDuration = "gen_ai.client.operation.duration"
	// MetricBotAgentClientRequestCnt represents the request count for client.
	MetricBotAgentClientRequestCnt = "trpc_botagent.client.request_cnt"

	// MeterNameChat is the meter name for model chat operations.
	MeterNameChat = "trpc_botagent.internal.chat"
	// MeterNameExecuteTool is the meter name for tool execution operations.
	MeterNameExecuteTool = "trpc_botagent.internal.execute_tool"
	// MeterNameRunAgent is the meter name for agent run operations.
	MeterNameRunAgent = "trpc_botagent.internal.run_agent"
	// MeterNameHandoff is the meter name for handoff operations.
	MeterNameHandoff = "trpc_botagent.internal.handoff"
)
