//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds shared telemetry state for the runtime: service
// identity constants, attribute key aliases, and the meter instruments that
// record agent, model, tool, and handoff activity.
package telemetry

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	semconvtrace "trpc.group/trpc-go/trpc-botagent-go/telemetry/semconv/trace"
)

// grpcDial is a package-level variable to allow test injection of a custom dialer.
var grpcDial = grpc.NewClient

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-botagent"
	InstrumentName   = "trpc.botagent.go"

	OperationChat        = "chat"
	OperationExecuteTool = "execute_tool"
	OperationRunAgent    = "run_agent"
	OperationHandoff     = "handoff"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Telemetry attribute keys aliases from semconv package.
var (
	KeyBotAgentAppName = semconvtrace.KeyBotAgentAppName
	KeyBotAgentUserID  = semconvtrace.KeyBotAgentUserID

	KeyGenAIOperationName = semconvtrace.KeyGenAIOperationName
	KeyGenAISystem        = semconvtrace.KeyGenAISystem

	KeyGenAIRequestModel      = semconvtrace.KeyGenAIRequestModel
	KeyGenAIResponseModel     = semconvtrace.KeyGenAIResponseModel
	KeyGenAIAgentName         = semconvtrace.KeyGenAIAgentName
	KeyGenAIConversationID    = semconvtrace.KeyGenAIConversationID
	KeyGenAIUsageInputTokens  = semconvtrace.KeyGenAIUsageInputTokens
	KeyGenAIUsageOutputTokens = semconvtrace.KeyGenAIUsageOutputTokens

	KeyGenAIToolName = semconvtrace.KeyGenAIToolName

	KeyBotAgentHandoffFrom   = semconvtrace.KeyBotAgentHandoffFrom
	KeyBotAgentHandoffTo     = semconvtrace.KeyBotAgentHandoffTo
	KeyBotAgentHandoffStatus = semconvtrace.KeyBotAgentHandoffStatus
	KeyBotAgentStopReason    = semconvtrace.KeyBotAgentStopReason

	KeyErrorType          = semconvtrace.KeyErrorType
	KeyErrorMessage       = semconvtrace.KeyErrorMessage
	ValueDefaultErrorType = semconvtrace.ValueDefaultErrorType

	SystemBotAgent = semconvtrace.SystemBotAgent
)

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpcDial(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, err
}
