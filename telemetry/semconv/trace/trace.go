//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace defines span attribute key constants following OpenTelemetry
// semantic conventions for generative AI, plus the runtime's own keys.
package trace

const (
	// ResourceServiceNamespace is the resource attribute key of service namespace.
	ResourceServiceNamespace = "service.namespace"
	// ResourceServiceName is the resource attribute key of service name.
	ResourceServiceName = "service.name"
	// ResourceServiceVersion is the resource attribute key of service version.
	ResourceServiceVersion = "service.version"

	KeyBotAgentAppName = "trpc_botagent.app.name"
	KeyBotAgentUserID  = "trpc_botagent.user.id"

	KeyGenAIOperationName = "gen_ai.operation.name"
	KeyGenAISystem        = "gen_ai.system"

	KeyGenAIRequestModel      = "gen_ai.request.model"
	KeyGenAIResponseModel     = "gen_ai.response.model"
	KeyGenAIAgentName         = "gen_ai.agent.name"
	KeyGenAIConversationID    = "gen_ai.conversation.id"
	KeyGenAIUsageInputTokens  = "gen_ai.usage.input_tokens"  // #nosec G101 - this is a metric key name, not a credential.
	KeyGenAIUsageOutputTokens = "gen_ai.usage.output_tokens" // #nosec G101 - this is a metric key name, not a credential.

	KeyGenAIToolName = "gen_ai.tool.name"

	KeyBotAgentHandoffFrom   = "trpc_botagent.handoff.from"
	KeyBotAgentHandoffTo     = "trpc_botagent.handoff.to"
	KeyBotAgentHandoffStatus = "trpc_botagent.handoff.status"
	KeyBotAgentStopReason    = "trpc_botagent.agent.stop_reason"

	KeyErrorType          = "error.type"
	KeyErrorMessage       = "error.message"
	ValueDefaultErrorType = "_OTHER"

	// SystemBotAgent is the gen_ai.system value reported by this runtime.
	SystemBotAgent = "trpc.botagent"
)
