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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/model"
)

func TestParseCoordinatorDecisionPlainJSON(t *testing.T) {
	d := ParseCoordinatorDecision(`{
		"selected_agents": ["billing", "support"],
		"execution_mode": "parallel",
		"agent_inputs": {"billing": "check invoice 42"},
		"fallback_response": "try later",
		"reason": "billing question",
		"confidence": 0.8
	}`)
	assert.Equal(t, []string{"billing", "support"}, d.SelectedAgents)
	assert.Equal(t, "parallel", d.ExecutionMode)
	assert.Equal(t, "check invoice 42", d.AgentInputs["billing"])
	assert.Equal(t, "try later", d.FallbackResponse)
	assert.Equal(t, "billing question", d.Reason)
	assert.Equal(t, 0.8, d.Confidence)
}

func TestParseCoordinatorDecisionFenced(t *testing.T) {
	d := ParseCoordinatorDecision("```json\n{\"selected_agents\": [\"billing\"]}\n```")
	assert.Equal(t, []string{"billing"}, d.SelectedAgents)
	assert.Equal(t, "sequential", d.ExecutionMode)
}

func TestParseCoordinatorDecisionProseWrapped(t *testing.T) {
	d := ParseCoordinatorDecision(`Here is my routing decision:
{"selected_agents": ["support"], "reason": "general question"}
Let me know if you need anything else.`)
	assert.Equal(t, []string{"support"}, d.SelectedAgents)
	assert.Equal(t, "general question", d.Reason)
}

func TestParseCoordinatorDecisionMalformed(t *testing.T) {
	d := ParseCoordinatorDecision("I am not sure how to route this one.")
	assert.Empty(t, d.SelectedAgents)
	assert.Equal(t, "sequential", d.ExecutionMode)
	assert.Equal(t, float64(1), d.Confidence)
	assert.Equal(t, defaultFallbackResponse, d.FallbackResponse)
}

func TestParseCoordinatorDecisionDefaults(t *testing.T) {
	// A well-formed decision that omits fields keeps the seeded defaults,
	// except the fallback response, which only the unparseable path fills.
	d := ParseCoordinatorDecision(`{"selected_agents": ["billing"]}`)
	assert.Equal(t, "sequential", d.ExecutionMode)
	assert.Equal(t, float64(1), d.Confidence)
	assert.Empty(t, d.FallbackResponse)
}

func TestOrchestratorToolBasedHandoff(t *testing.T) {
	var captured *HandoffRequest
	billing := runtimeCard("billing", func(c *AgentCard) {
		c.Name = "Billing"
		c.Description = "Handles invoices"
	})
	billing.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		captured = req
		return &HandoffResult{Output: "invoice sent"}, nil
	}

	m := newScriptModel(
		replyToolCalls("", tcall("call_1", "transfer_to_billing", `{"reason":"user asks about invoice"}`)),
		reply("Billing says: invoice sent"),
	)
	dispatcher := runtimeCard("dispatcher")
	dispatcher.Agent = New("dispatcher", WithModel(m), WithRegistry(weatherRegistry()))

	reg := registryWith(t, dispatcher, billing)
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("dispatcher"))

	res := orch.Run(context.Background(), "where is my invoice?", Caller{OwnerID: "u1"}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Billing says: invoice sent", res.Output)
	assert.Equal(t, "dispatcher", res.AgentID)
	assert.True(t, res.ShouldReturn)
	assert.NotEmpty(t, res.RequestID)

	// The entry agent keeps its own tools and gains the transfer tool.
	names := make([]string, 0, len(m.request(0).Tools))
	for _, spec := range m.request(0).Tools {
		names = append(names, spec.Name)
	}
	assert.Contains(t, names, "get_weather")
	assert.Contains(t, names, "transfer_to_billing")

	// The handoff output came back as the tool result.
	second := m.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Equal(t, "transfer_to_billing", last.ToolName)
	assert.Equal(t, "invoice sent", last.Content)

	require.NotNil(t, captured)
	assert.Equal(t, "dispatcher", captured.FromAgent)
	assert.Equal(t, ModeToolBased, captured.RequestedMode)
	assert.Equal(t, "user asks about invoice", captured.Reason)
	assert.Equal(t, "u1", captured.CallerOwnerID)
	require.Len(t, captured.Context.Messages, 1)
	assert.Equal(t, "where is my invoice?", captured.Context.Messages[0].Content)
}

func TestOrchestratorToolBasedEmptyReasonUsesInput(t *testing.T) {
	var captured *HandoffRequest
	billing := runtimeCard("billing")
	billing.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		captured = req
		return &HandoffResult{Output: "done"}, nil
	}
	m := newScriptModel(
		replyToolCalls("", tcall("call_1", "transfer_to_billing", `{"reason":""}`)),
		reply("all set"),
	)
	dispatcher := runtimeCard("dispatcher")
	dispatcher.Agent = New("dispatcher", WithModel(m))

	reg := registryWith(t, dispatcher, billing)
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("dispatcher"))

	orch.Run(context.Background(), "refund my order", Caller{}, "")
	require.NotNil(t, captured)
	assert.Equal(t, "refund my order", captured.Reason)
}

func TestOrchestratorToolBasedHandoffFailureFedToLLM(t *testing.T) {
	billing := runtimeCard("billing")
	billing.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, errors.New("backend exploded")
	}
	m := newScriptModel(
		replyToolCalls("", tcall("call_1", "transfer_to_billing", `{"reason":"check invoice"}`)),
		reply("Billing is unavailable right now."),
	)
	dispatcher := runtimeCard("dispatcher")
	dispatcher.Agent = New("dispatcher", WithModel(m))

	reg := registryWith(t, dispatcher, billing)
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("dispatcher"))

	res := orch.Run(context.Background(), "where is my invoice?", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Billing is unavailable right now.", res.Output)

	second := m.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "Handoff failed: backend exploded", last.Content)
}

func TestOrchestratorToolBasedEntryMissing(t *testing.T) {
	reg := registryWith(t)
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("ghost"))

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	assert.Equal(t, "Entry agent not found: ghost", res.Error.Message)
}

func TestOrchestratorToolBasedEntryNotBound(t *testing.T) {
	reg := registryWith(t, runtimeCard("dispatcher"))
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("dispatcher"))

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "Agent dispatcher has no runtime bound", res.Error.Message)
}

func TestOrchestratorToolBasedMemorySummaryTravels(t *testing.T) {
	var captured *HandoffRequest
	billing := runtimeCard("billing")
	billing.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		captured = req
		return &HandoffResult{Output: "done"}, nil
	}
	m := newScriptModel(
		replyToolCalls("", tcall("call_1", "transfer_to_billing", `{"reason":"invoice"}`)),
		reply("done"),
	)
	dispatcher := runtimeCard("dispatcher")
	dispatcher.Agent = New("dispatcher", WithModel(m))

	reg := registryWith(t, dispatcher, billing)
	orch := NewOrchestrator(reg, NewEngine(reg), WithEntryAgent("dispatcher"))

	orch.Run(context.Background(), "invoice?", Caller{}, "user renews yearly")

	// The entry agent sees the summary as extra system context.
	first := m.request(0)
	assert.Equal(t, model.RoleSystem, first.Messages[0].Role)
	assert.Equal(t, "user renews yearly", first.Messages[0].Content)

	// And the handoff carries it to the target.
	require.NotNil(t, captured)
	assert.Equal(t, "user renews yearly", captured.Context.MemorySummary)
}

func coordinatorOrchestrator(t *testing.T, decision string, runtimes ...*AgentRuntime) (*Orchestrator, *scriptModel) {
	t.Helper()
	m := newScriptModel(reply(decision))
	reg := registryWith(t, runtimes...)
	orch := NewOrchestrator(reg, NewEngine(reg),
		WithMode(ModeCoordinator), WithCoordinatorModel(m))
	return orch, m
}

func TestOrchestratorCoordinatorRoutes(t *testing.T) {
	var captured *HandoffRequest
	billing := runtimeCard("billing", func(c *AgentCard) {
		c.Name = "Billing"
		c.Description = "Handles invoices"
		c.Skills = []string{"invoices", "refunds"}
	})
	billing.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		captured = req
		return &HandoffResult{Output: "invoice is paid"}, nil
	}

	orch, m := coordinatorOrchestrator(t,
		`{"selected_agents":["billing"],"agent_inputs":{"billing":"check invoice 42"},"reason":"billing question"}`,
		billing)

	res := orch.Run(context.Background(), "where is my invoice?", Caller{OwnerID: "u1"}, "user history")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "invoice is paid", res.Output)
	assert.Equal(t, "billing", res.AgentID)
	assert.True(t, res.ShouldReturn)

	prompt := m.request(0)
	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, model.RoleSystem, prompt.Messages[0].Role)
	assert.Contains(t, prompt.Messages[0].Content, defaultCoordinatorPrompt)
	assert.Contains(t, prompt.Messages[0].Content, "Available agents:")
	assert.Contains(t, prompt.Messages[0].Content, "- billing: Billing — Handles invoices (skills: invoices, refunds)")
	assert.Equal(t, "where is my invoice?", prompt.Messages[1].Content)

	require.NotNil(t, captured)
	assert.Equal(t, coordinatorAgentID, captured.FromAgent)
	assert.Equal(t, ModeCoordinator, captured.RequestedMode)
	assert.Equal(t, "billing question", captured.Reason)
	assert.Equal(t, "u1", captured.CallerOwnerID)
	require.Len(t, captured.Context.Messages, 1)
	assert.Equal(t, "check invoice 42", captured.Context.Messages[0].Content)
	assert.Equal(t, "user history", captured.Context.MemorySummary)
}

func TestOrchestratorCoordinatorNoModel(t *testing.T) {
	reg := registryWith(t)
	orch := NewOrchestrator(reg, NewEngine(reg), WithMode(ModeCoordinator))

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeModelError, res.Error.Code)
	assert.Equal(t, "No coordinator LLM", res.Error.Message)
}

func TestOrchestratorCoordinatorModelError(t *testing.T) {
	m := newScriptModel(replyErr(errors.New("quota exceeded")))
	reg := registryWith(t)
	orch := NewOrchestrator(reg, NewEngine(reg),
		WithMode(ModeCoordinator), WithCoordinatorModel(m))

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeModelError, res.Error.Code)
	assert.Contains(t, res.Error.Message, "quota exceeded")
}

func TestOrchestratorCoordinatorUnknownAgentFallback(t *testing.T) {
	orch, _ := coordinatorOrchestrator(t,
		`{"selected_agents":["ghost"],"fallback_response":"Please try again later."}`)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Please try again later.", res.Output)
	assert.True(t, res.ShouldReturn)
}

func TestOrchestratorCoordinatorEmptySelectionEchoesContent(t *testing.T) {
	decision := `{"selected_agents":[]}`
	orch, _ := coordinatorOrchestrator(t, decision)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, decision, res.Output)
}

func TestOrchestratorCoordinatorSequentialStopsAtSuccess(t *testing.T) {
	var aRuns, bRuns, cRuns int
	a := runtimeCard("agent-a")
	a.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		aRuns++
		return nil, errors.New("a is down")
	}
	b := runtimeCard("agent-b")
	b.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		bRuns++
		return &HandoffResult{Output: "b answered"}, nil
	}
	c := runtimeCard("agent-c")
	c.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		cRuns++
		return &HandoffResult{Output: "c answered"}, nil
	}

	orch, _ := coordinatorOrchestrator(t,
		`{"selected_agents":["agent-a","agent-b","agent-c"],"execution_mode":"sequential"}`,
		a, b, c)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "b answered", res.Output)
	assert.Equal(t, 1, aRuns)
	assert.Equal(t, 1, bRuns)
	assert.Equal(t, 0, cRuns)
}

func TestOrchestratorCoordinatorParallelFirstSuccessInOrder(t *testing.T) {
	var aRuns, bRuns int32
	a := runtimeCard("agent-a")
	a.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		atomic.AddInt32(&aRuns, 1)
		time.Sleep(20 * time.Millisecond) // finishes after b, still wins
		return &HandoffResult{Output: "a answered"}, nil
	}
	b := runtimeCard("agent-b")
	b.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		atomic.AddInt32(&bRuns, 1)
		return &HandoffResult{Output: "b answered"}, nil
	}

	orch, _ := coordinatorOrchestrator(t,
		`{"selected_agents":["agent-a","agent-b"],"execution_mode":"parallel"}`,
		a, b)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "a answered", res.Output)
	assert.Equal(t, int32(1), atomic.LoadInt32(&aRuns))
	assert.Equal(t, int32(1), atomic.LoadInt32(&bRuns))
}

func TestOrchestratorCoordinatorAllFailUsesFallback(t *testing.T) {
	a := runtimeCard("agent-a")
	a.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, errors.New("a is down")
	}
	orch, _ := coordinatorOrchestrator(t,
		`{"selected_agents":["agent-a"],"fallback_response":"All specialists are busy."}`,
		a)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "All specialists are busy.", res.Output)
}

func TestOrchestratorCoordinatorAllFailReturnsLastError(t *testing.T) {
	a := runtimeCard("agent-a")
	a.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, errors.New("a is down")
	}
	b := runtimeCard("agent-b")
	b.Run = func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error) {
		return nil, errors.New("b is down")
	}
	orch, _ := coordinatorOrchestrator(t,
		`{"selected_agents":["agent-a","agent-b"],"execution_mode":"sequential"}`,
		a, b)

	res := orch.Run(context.Background(), "hello", Caller{}, "")
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "agent-b", res.AgentID)
	require.NotNil(t, res.Error)
	assert.Equal(t, "b is down", res.Error.Message)
}

func TestOrchestratorCoordinatorCatalogHidesInvisible(t *testing.T) {
	hidden := runtimeCard("hidden", func(c *AgentCard) {
		c.Visibility = VisibilityPrivate
		c.OwnerID = "alice"
	})
	visible := runtimeCard("visible")

	orch, m := coordinatorOrchestrator(t, `{"selected_agents":[]}`, hidden, visible)

	orch.Run(context.Background(), "hello", Caller{OwnerID: "bob"}, "")
	prompt := m.request(0).Messages[0].Content
	assert.Contains(t, prompt, "- visible:")
	assert.NotContains(t, prompt, "- hidden:")
}

func TestLoopResultToHandoffMapping(t *testing.T) {
	start := time.Now()

	res := loopResultToHandoff("support", &AgentResult{
		FinalOutput:   "done",
		StoppedReason: StopCompleted,
		RequestID:     "run-1",
		Usage:         model.Usage{TotalTokens: 9},
	}, start)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, "run-1", res.RequestID)
	assert.True(t, res.ShouldReturn)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 9, res.Usage.TotalTokens)

	res = loopResultToHandoff("support", &AgentResult{
		FinalOutput:   "Input guardrail triggered: block_all",
		StoppedReason: StopInputGuardrail,
	}, start)
	assert.Equal(t, StatusDenied, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeSafetyBlock, res.Error.Code)

	res = loopResultToHandoff("support", &AgentResult{
		FinalOutput:   "model error: shed load",
		StoppedReason: StopError,
	}, start)
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeModelError, res.Error.Code)

	res = loopResultToHandoff("support", &AgentResult{
		FinalOutput:   "still working",
		StoppedReason: StopMaxTurns,
	}, start)
	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeToolError, res.Error.Code)
	assert.Equal(t, "Agent support stopped after max turns", res.Error.Message)
}
