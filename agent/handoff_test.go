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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/model"
)

func handoffMessages(contents ...string) []HandoffMessage {
	msgs := make([]HandoffMessage, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, HandoffMessage{Role: "user", Content: c})
	}
	return msgs
}

func TestNewHandoffRequestDefaults(t *testing.T) {
	req := NewHandoffRequest("billing", "support", "needs human help")
	assert.Equal(t, "billing", req.FromAgent)
	assert.Equal(t, "support", req.ToAgent)
	assert.Equal(t, ModeAuto, req.RequestedMode)
	assert.Len(t, req.RequestID, 36)
	assert.Equal(t, 4000, req.Context.TokenBudget)
	assert.Equal(t, "zh-CN", req.Context.Locale)
}

func TestToReturnMessage(t *testing.T) {
	result := &HandoffResult{
		Output:    "balance is 42",
		AgentID:   "billing",
		Status:    StatusSuccess,
		RequestID: "req-9",
		Usage:     &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		CacheHit:  true,
	}

	msg := result.ToReturnMessage("call_7")
	assert.Equal(t, model.RoleTool, msg.Role)
	assert.Equal(t, "call_7", msg.ToolID)
	assert.Equal(t, "handoff_result", msg.ToolName)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Content), &payload))
	assert.Equal(t, "billing", payload["agent_id"])
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "balance is 42", payload["output"])
	assert.Equal(t, "req-9", payload["request_id"])
	assert.Equal(t, true, payload["cache_hit"])
	usage, ok := payload["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(15), usage["total_tokens"])
}

func TestToReturnMessageFailure(t *testing.T) {
	result := &HandoffResult{
		AgentID: "billing",
		Status:  StatusDenied,
		Error:   NewHandoffError(CodeNotAllowed, "Private agent: owner mismatch"),
	}

	msg := result.ToReturnMessage("call_8")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Content), &payload))
	assert.Equal(t, "denied", payload["status"])
	assert.Equal(t, "", payload["output"])
	assert.Nil(t, payload["usage"])
}

func TestLastNMessages(t *testing.T) {
	hc := &HandoffContext{Messages: handoffMessages("a", "b", "c", "d")}
	LastNMessages(2)(hc)
	require.Len(t, hc.Messages, 2)
	assert.Equal(t, "c", hc.Messages[0].Content)
	assert.Equal(t, "d", hc.Messages[1].Content)

	LastNMessages(10)(hc)
	assert.Len(t, hc.Messages, 2)

	LastNMessages(0)(hc)
	assert.Nil(t, hc.Messages)
}

func TestSummaryOnly(t *testing.T) {
	hc := &HandoffContext{
		Messages:      handoffMessages("a", "b"),
		MemorySummary: "user is renewing a subscription",
	}
	SummaryOnly()(hc)
	assert.Nil(t, hc.Messages)
	assert.Equal(t, "user is renewing a subscription", hc.MemorySummary)
}

func TestAllowAll(t *testing.T) {
	hc := &HandoffContext{Messages: handoffMessages("a", "b")}
	AllowAll()(hc)
	assert.Len(t, hc.Messages, 2)
}

func TestPlatformRedact(t *testing.T) {
	hc := &HandoffContext{Messages: []HandoffMessage{
		{Role: "user", Content: "my token is SECRET-123, keep it safe"},
		{Role: "assistant", Content: "nothing sensitive here"},
	}}
	PlatformRedact([]string{`secret-\d+`})(hc)

	assert.Equal(t, "my token is [REDACTED], keep it safe", hc.Messages[0].Content)
	assert.Equal(t, []string{`secret-\d+`}, hc.Messages[0].RedactionTags)
	require.Len(t, hc.RedactionReport, 1)
	assert.Equal(t, `Redacted pattern 'secret-\d+' from user message`, hc.RedactionReport[0])

	assert.Equal(t, "nothing sensitive here", hc.Messages[1].Content)
	assert.Empty(t, hc.Messages[1].RedactionTags)
}

func TestPlatformRedactSkipsInvalidPattern(t *testing.T) {
	hc := &HandoffContext{Messages: handoffMessages("card 4111-1111")}
	PlatformRedact([]string{`(unclosed`, `\d{4}-\d{4}`})(hc)
	assert.Equal(t, "card [REDACTED]", hc.Messages[0].Content)
	assert.Equal(t, []string{`\d{4}-\d{4}`}, hc.Messages[0].RedactionTags)
}
