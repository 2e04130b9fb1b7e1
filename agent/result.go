//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// Stop reasons reported in AgentResult.StoppedReason.
const (
	// StopCompleted means the model produced a final text answer.
	StopCompleted = "completed"
	// StopMaxTurns means the turn budget ran out while the model was still
	// requesting tools.
	StopMaxTurns = "max_turns"
	// StopError means a model call failed.
	StopError = "error"
	// StopInputGuardrail means an input guard tripped before the model ran.
	StopInputGuardrail = "input_guardrail_triggered"
	// StopOutputGuardrail means an output guard tripped on the final answer.
	StopOutputGuardrail = "output_guardrail_triggered"
)

// ToolCallRecord is one tool invocation within a turn.
type ToolCallRecord struct {
	// ID is the model-assigned tool call id.
	ID string `json:"id,omitempty"`
	// Name is the tool name.
	Name string `json:"name"`
	// Arguments is the parsed argument map.
	Arguments map[string]any `json:"arguments,omitempty"`
	// Result is the textual tool result fed back to the model.
	Result string `json:"result,omitempty"`
	// Error is the failure text when the call failed.
	Error string `json:"error,omitempty"`
	// DurationMS is the wall-clock execution time in milliseconds.
	DurationMS float64 `json:"duration_ms,omitempty"`
}

// TurnRecord is one model turn: a single model call plus any tool
// executions it requested.
type TurnRecord struct {
	// Index is the 1-based turn number.
	Index int `json:"index"`
	// AssistantContent is the model's text output for the turn.
	AssistantContent string `json:"assistant_content,omitempty"`
	// ToolCalls are the tool executions requested this turn, in response
	// order.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	// IsFinal marks the turn that produced the final answer.
	IsFinal bool `json:"is_final,omitempty"`
	// Usage is the token usage of this turn's model call.
	Usage model.Usage `json:"usage"`
}

// AgentResult is the outcome of one Run.
type AgentResult struct {
	// FinalOutput is the final text answer, the tripwire message, or the
	// error text, depending on StoppedReason.
	FinalOutput string `json:"final_output"`
	// StoppedReason tells why the loop stopped.
	StoppedReason string `json:"stopped_reason"`
	// Turns is the complete turn-by-turn trace.
	Turns []TurnRecord `json:"turns,omitempty"`
	// ToolCallsCount is the total number of tool calls across all turns.
	ToolCallsCount int `json:"tool_calls_count"`
	// TotalTurns is the number of model invocations.
	TotalTurns int `json:"total_turns"`
	// Messages is the full message history, useful for continuing the
	// conversation.
	Messages []model.Message `json:"messages,omitempty"`
	// Usage is the accumulated token usage across all turns.
	Usage model.Usage `json:"usage"`
	// RequestID identifies the run.
	RequestID string `json:"request_id,omitempty"`
}
