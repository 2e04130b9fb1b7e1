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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
	"trpc.group/trpc-go/trpc-botagent-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-botagent-go/guardrail"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

func engineReq(to string, mutate ...func(*HandoffRequest)) *HandoffRequest {
	req := NewHandoffRequest("source", to, "assist the user")
	for _, m := range mutate {
		m(req)
	}
	return req
}

func registryWith(t *testing.T, runtimes ...*AgentRuntime) *AgentRegistry {
	t.Helper()
	reg := NewAgentRegistry()
	for _, rt := range runtimes {
		require.NoError(t, reg.Register(rt))
	}
	return reg
}

func echoRuntime(id string) *AgentRuntime {
	rt := runtimeCard(id)
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return &HandoffResult{Output: "echo: " + req.Reason}, nil
	}
	return rt
}

func TestExecuteSuccessStampsResult(t *testing.T) {
	e := NewEngine(registryWith(t, echoRuntime("support")))
	req := engineReq("support")

	res := e.Execute(context.Background(), req)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "echo: assist the user", res.Output)
	assert.Equal(t, "support", res.AgentID)
	assert.True(t, res.ShouldReturn)
	assert.Equal(t, req.RequestID, res.RequestID)
	assert.Nil(t, res.Error)
	assert.GreaterOrEqual(t, res.DurationMS, 0.0)
}

func TestExecuteAgentNotFound(t *testing.T) {
	e := NewEngine(registryWith(t))

	res := e.Execute(context.Background(), engineReq("ghost"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	assert.Equal(t, "Agent not found: ghost", res.Error.Message)
	assert.Equal(t, "ghost", res.AgentID)
	assert.False(t, res.ShouldReturn)
}

func TestExecuteAccessDenied(t *testing.T) {
	ran := false
	rt := runtimeCard("support", func(c *AgentCard) { c.HandoffPolicy = HandoffDeny })
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		ran = true
		return &HandoffResult{Output: "should not run"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusDenied, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotAllowed, res.Error.Code)
	assert.Equal(t, "Agent support denies handoff", res.Error.Message)
	assert.False(t, ran)
}

func TestExecuteLoopDetected(t *testing.T) {
	e := NewEngine(registryWith(t, echoRuntime("support")))

	res := e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.VisitedAgents = []string{"billing", "support"}
	}))
	assert.Equal(t, StatusLoopDetected, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeLoopDetected, res.Error.Code)
	assert.False(t, res.Error.Retryable)

	res = e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.FromAgent = "support"
	}))
	assert.Equal(t, StatusLoopDetected, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Agent support cannot hand off to itself", res.Error.Message)
}

func TestExecuteRunErrorClassifiedAsToolError(t *testing.T) {
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, errors.New("backend exploded")
	}
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "backend exploded", res.Error.Message)
	assert.True(t, res.Error.Retryable)
}

func TestExecuteTypedErrorKeepsCode(t *testing.T) {
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, NewHandoffError(CodeRateLimited, "throttled upstream")
	}
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeRateLimited, res.Error.Code)
	assert.Equal(t, "throttled upstream", res.Error.Message)
	assert.True(t, res.Error.Retryable)
}

func TestExecuteNoRuntimeBound(t *testing.T) {
	e := NewEngine(registryWith(t, runtimeCard("support")))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "Agent support has no runtime bound", res.Error.Message)
}

func TestExecuteDeadlineTimesOut(t *testing.T) {
	rt := runtimeCard("slow")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		time.Sleep(250 * time.Millisecond)
		return &HandoffResult{Output: "too late"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("slow", func(r *HandoffRequest) {
		r.DeadlineMS = 30
	}))
	assert.Equal(t, StatusTimeout, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeTimeout, res.Error.Code)
	assert.Equal(t, "Handoff timed out after 30ms", res.Error.Message)
	assert.True(t, res.Error.Retryable)
}

func TestExecuteParentCancelReported(t *testing.T) {
	rt := runtimeCard("slow")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		time.Sleep(250 * time.Millisecond)
		return &HandoffResult{Output: "too late"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res := e.Execute(ctx, engineReq("slow"))
	assert.Equal(t, StatusTimeout, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeTimeout, res.Error.Code)
	assert.Contains(t, res.Error.Message, "Handoff canceled")
}

func TestExecutePanicRecovered(t *testing.T) {
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		panic("boom")
	}
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "agent support panicked: boom", res.Error.Message)
}

func TestExecuteIdempotentReplay(t *testing.T) {
	runs := 0
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		runs++
		return &HandoffResult{Output: "first run"}, nil
	}
	e := NewEngine(registryWith(t, rt), WithIdempotencyCache(NewIdempotencyCache(0)))

	first := e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.RequestID = "req-dup"
	}))
	second := e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.RequestID = "req-dup"
	}))

	assert.Equal(t, 1, runs)
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "first run", second.Output)
	assert.Equal(t, StatusSuccess, second.Status)
}

func TestExecuteFilterOrder(t *testing.T) {
	var order []string
	rt := echoRuntime("support")
	rt.InputFilter = func(hc *HandoffContext) { order = append(order, "input") }
	e := NewEngine(registryWith(t, rt),
		WithPlatformFilter(func(hc *HandoffContext) { order = append(order, "platform") }))

	res := e.Execute(context.Background(), engineReq("support"))
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []string{"platform", "input"}, order)
}

func TestExecuteMessageCountBudget(t *testing.T) {
	var got []HandoffMessage
	rt := runtimeCard("support", func(c *AgentCard) {
		c.Metadata = map[string]string{"max_handoff_messages": "2"}
	})
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		got = append([]HandoffMessage(nil), req.Context.Messages...)
		return &HandoffResult{Output: "ok"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.Context.Messages = []HandoffMessage{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
			{Role: "assistant", Content: "four"},
		}
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Content)
	assert.Equal(t, "four", got[1].Content)
}

func TestExecuteTokenBudgetDropsOldest(t *testing.T) {
	var got []HandoffMessage
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		got = append([]HandoffMessage(nil), req.Context.Messages...)
		return &HandoffResult{Output: "ok"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.Context.TokenBudget = 50
		r.Context.Messages = []HandoffMessage{
			{Role: "user", Content: strings.Repeat("x", 400)},
			{Role: "user", Content: "keep me"},
		}
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "keep me", got[0].Content)
}

func TestExecuteCardTokenLimitOverridesBudget(t *testing.T) {
	var got []HandoffMessage
	rt := runtimeCard("roomy", func(c *AgentCard) { c.MaxContextTokens = 10000 })
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		got = append([]HandoffMessage(nil), req.Context.Messages...)
		return &HandoffResult{Output: "ok"}, nil
	}
	e := NewEngine(registryWith(t, rt))

	e.Execute(context.Background(), engineReq("roomy", func(r *HandoffRequest) {
		r.Context.TokenBudget = 50
		r.Context.Messages = []HandoffMessage{
			{Role: "user", Content: strings.Repeat("x", 400)},
			{Role: "user", Content: "keep me"},
		}
	}))
	assert.Len(t, got, 2)
}

func TestExecuteOffloadsAttachments(t *testing.T) {
	svc := inmemory.NewService()
	var got []Attachment
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		got = append([]Attachment(nil), req.Context.Attachments...)
		return &HandoffResult{Output: "ok"}, nil
	}
	e := NewEngine(registryWith(t, rt), WithArtifactService(svc))

	req := engineReq("support", func(r *HandoffRequest) {
		r.Context.Attachments = []Attachment{
			{Name: "report.pdf", MimeType: "application/pdf", Data: []byte("pdf-bytes")},
			{Name: "ref-only.txt", Ref: "artifact:ref-only.txt@3"},
		}
	})
	res := e.Execute(context.Background(), req)
	require.Equal(t, StatusSuccess, res.Status)
	require.Len(t, got, 2)
	assert.Equal(t, "artifact:report.pdf@0", got[0].Ref)
	assert.Nil(t, got[0].Data)
	assert.Equal(t, "artifact:ref-only.txt@3", got[1].Ref)

	// The payload landed in the store, scoped to target/source/request.
	info := artifact.SessionInfo{AppName: "support", UserID: "source", SessionID: req.RequestID}
	art, err := svc.LoadArtifact(context.Background(), info, "report.pdf", nil)
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, []byte("pdf-bytes"), art.Data)
	assert.Equal(t, "application/pdf", art.MimeType)
}

func TestResolveAttachmentsRoundTrip(t *testing.T) {
	svc := inmemory.NewService()
	e := NewEngine(registryWith(t, echoRuntime("support")), WithArtifactService(svc))

	info := artifact.SessionInfo{AppName: "support", UserID: "source", SessionID: "conv-1"}
	_, err := svc.SaveArtifact(context.Background(), info, "notes.txt",
		&artifact.Artifact{Data: []byte("hello"), MimeType: "text/plain"})
	require.NoError(t, err)

	req := engineReq("support", func(r *HandoffRequest) {
		r.Context.ConversationID = "conv-1"
		r.Context.Attachments = []Attachment{{Name: "notes.txt", Ref: "artifact:notes.txt@0"}}
	})
	require.NoError(t, e.ResolveAttachments(context.Background(), req))
	att := req.Context.Attachments[0]
	assert.Equal(t, []byte("hello"), att.Data)
	assert.Equal(t, "text/plain", att.MimeType)
}

func TestResolveAttachmentsErrors(t *testing.T) {
	svc := inmemory.NewService()
	e := NewEngine(registryWith(t, echoRuntime("support")), WithArtifactService(svc))

	req := engineReq("support", func(r *HandoffRequest) {
		r.Context.Attachments = []Attachment{{Name: "ghost.bin", Ref: "artifact:ghost.bin@0"}}
	})
	err := e.ResolveAttachments(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `artifact "artifact:ghost.bin@0" not found`)

	req = engineReq("support", func(r *HandoffRequest) {
		r.Context.Attachments = []Attachment{{Name: "odd", Ref: "s3:whatever"}}
	})
	err = e.ResolveAttachments(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheme")

	// Without an artifact service the refs are left alone.
	bare := NewEngine(registryWith(t))
	require.NoError(t, bare.ResolveAttachments(context.Background(), req))
}

func TestExecuteSharesArtifactServiceWithTarget(t *testing.T) {
	svc := inmemory.NewService()
	found := false
	rt := runtimeCard("support")
	rt.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		_, found = artifact.ServiceFromContext(ctx)
		return &HandoffResult{Output: "ok"}, nil
	}
	e := NewEngine(registryWith(t, rt), WithArtifactService(svc))

	res := e.Execute(context.Background(), engineReq("support"))
	require.Equal(t, StatusSuccess, res.Status)
	assert.True(t, found)
}

func TestExecuteRunsBoundAgent(t *testing.T) {
	m := newScriptModel(reply("the answer"))
	rt := runtimeCard("support")
	rt.Agent = New("support", WithModel(m))
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support", func(r *HandoffRequest) {
		r.Context.Messages = []HandoffMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
			{Role: "user", Content: "latest question"},
		}
		r.Context.MemorySummary = "User prefers concise answers."
	}))
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "the answer", res.Output)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	sent := m.request(0)
	require.Len(t, sent.Messages, 4)
	assert.Equal(t, model.RoleSystem, sent.Messages[0].Role)
	assert.Equal(t, "User prefers concise answers.", sent.Messages[0].Content)
	assert.Equal(t, model.RoleUser, sent.Messages[1].Role)
	assert.Equal(t, "earlier question", sent.Messages[1].Content)
	assert.Equal(t, model.RoleAssistant, sent.Messages[2].Role)
	assert.Equal(t, "earlier answer", sent.Messages[2].Content)
	assert.Equal(t, model.RoleUser, sent.Messages[3].Role)
	assert.Equal(t, "latest question", sent.Messages[3].Content)
}

func TestExecuteBoundAgentUsesReasonWithoutMessages(t *testing.T) {
	m := newScriptModel(reply("done"))
	rt := runtimeCard("support")
	rt.Agent = New("support", WithModel(m))
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusSuccess, res.Status)

	sent := m.request(0)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, model.RoleUser, sent.Messages[0].Role)
	assert.Equal(t, "assist the user", sent.Messages[0].Content)
}

func TestExecuteBoundAgentGuardrailTripIsDenied(t *testing.T) {
	guards := guardrail.NewManager()
	guards.AddInput(guardrail.NewInputGuard("block_all",
		func(ctx context.Context, gc *guardrail.Context) (*guardrail.Result, error) {
			return &guardrail.Result{Passed: false, Reason: "blocked"}, nil
		}))
	m := newScriptModel(reply("never reached"))
	rt := runtimeCard("support")
	rt.Agent = New("support", WithModel(m), WithGuardrails(guards))
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusDenied, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeSafetyBlock, res.Error.Code)
	assert.Contains(t, res.Error.Message, "Input guardrail triggered: block_all")
	assert.Equal(t, 0, m.callCount())
}

func TestExecuteBoundAgentModelErrorClassified(t *testing.T) {
	m := newScriptModel(replyErr(errors.New("rate limited")))
	rt := runtimeCard("support")
	rt.Agent = New("support", WithModel(m))
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeModelError, res.Error.Code)
	assert.Contains(t, res.Error.Message, "rate limited")
	assert.True(t, res.Error.Retryable)
}

func TestExecuteBoundAgentMaxTurnsIsToolError(t *testing.T) {
	m := newScriptModel(
		replyToolCalls("looping", tcall("call_1", "get_weather", `{"city":"SF"}`)),
		replyToolCalls("looping", tcall("call_2", "get_weather", `{"city":"SF"}`)),
	)
	rt := runtimeCard("support")
	rt.Agent = New("support", WithModel(m), WithRegistry(weatherRegistry()), WithMaxTurns(2))
	e := NewEngine(registryWith(t, rt))

	res := e.Execute(context.Background(), engineReq("support"))
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "Agent support stopped after max turns", res.Error.Message)
}
