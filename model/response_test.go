//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIsValid(t *testing.T) {
	valid := []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool}
	for _, r := range valid {
		assert.True(t, r.IsValid(), "role %q should be valid", r)
	}
	assert.False(t, Role("bot").IsValid())
	assert.Equal(t, "assistant", RoleAssistant.String())
}

func TestMessageConstructors(t *testing.T) {
	sys := NewSystemMessage("be nice")
	assert.Equal(t, RoleSystem, sys.Role)
	assert.Equal(t, "be nice", sys.Content)

	user := NewUserMessage("hi")
	assert.Equal(t, RoleUser, user.Role)

	tool := NewToolMessage("call_1", "get_weather", `{"temp": 20}`)
	assert.Equal(t, RoleTool, tool.Role)
	assert.Equal(t, "call_1", tool.ToolID)
	assert.Equal(t, "get_weather", tool.ToolName)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	u.Add(&Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	assert.Equal(t, 13, u.PromptTokens)
	assert.Equal(t, 7, u.CompletionTokens)
	assert.Equal(t, 20, u.TotalTokens)

	u.Add(nil)
	assert.Equal(t, 20, u.TotalTokens)
}

func TestResponseClone(t *testing.T) {
	code := "rate_limited"
	rsp := &Response{
		ID:    "resp-1",
		Model: "test-model",
		Choices: []Choice{
			{Index: 0, Message: NewAssistantMessage("hello")},
		},
		Usage: &Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		Error: &ResponseError{Message: "slow down", Type: ErrorTypeAPIError, Code: &code},
	}

	clone := rsp.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, rsp.ID, clone.ID)

	clone.Choices[0].Message.Content = "changed"
	clone.Usage.TotalTokens = 99
	clone.Error.Message = "changed"

	assert.Equal(t, "hello", rsp.Choices[0].Message.Content)
	assert.Equal(t, 3, rsp.Usage.TotalTokens)
	assert.Equal(t, "slow down", rsp.Error.Message)

	var nilRsp *Response
	assert.Nil(t, nilRsp.Clone())
}

func TestResponseHelpers(t *testing.T) {
	var nilRsp *Response
	assert.False(t, nilRsp.IsToolCallResponse())
	assert.Empty(t, nilRsp.Content())

	rsp := &Response{Choices: []Choice{{Message: Message{
		Role:    RoleAssistant,
		Content: "result",
		ToolCalls: []ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: FunctionDefinitionParam{Name: "echo"},
		}},
	}}}}
	assert.True(t, rsp.IsToolCallResponse())
	assert.Equal(t, "result", rsp.Content())

	empty := &Response{}
	assert.False(t, empty.IsToolCallResponse())
	assert.Empty(t, empty.Content())
}
