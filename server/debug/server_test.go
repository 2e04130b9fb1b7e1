//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/agent"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store/inmemory"
	"trpc.group/trpc-go/trpc-botagent-go/scheduler"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
	"trpc.group/trpc-go/trpc-botagent-go/tracing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAgentsEndpointRedactsList(t *testing.T) {
	reg := agent.NewAgentRegistry()
	require.NoError(t, reg.Register(&agent.AgentRuntime{Card: agent.AgentCard{
		AgentID:             "helper",
		Name:                "Helper",
		Skills:              []string{"chat"},
		AllowedCallerAgents: []string{"coordinator"},
	}}))
	s := New(WithAgents(reg))

	var cards []map[string]any
	decode(t, get(t, s.Handler(), "/api/agents"), &cards)
	require.Len(t, cards, 1)
	assert.Equal(t, "helper", cards[0]["agent_id"])
	assert.NotContains(t, cards[0], "allowed_caller_agents", "list view is redacted")

	var card map[string]any
	decode(t, get(t, s.Handler(), "/api/agents/helper"), &card)
	assert.Contains(t, card, "allowed_caller_agents", "detail view is the admin card")

	rec := get(t, s.Handler(), "/api/agents/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolsEndpoint(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(&tool.Definition{
		Name:        "get_weather",
		Description: "Get current weather for a city",
		Params: []tool.Param{
			{Name: "city", Type: "string", Description: "City name", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	})
	s := New(WithToolRegistry(reg))

	var specs []map[string]any
	decode(t, get(t, s.Handler(), "/api/tools"), &specs)
	require.Len(t, specs, 1)
	assert.Equal(t, "get_weather", specs[0]["name"])
}

func TestMemoryEndpoint(t *testing.T) {
	st := inmemory.New()
	session := memory.NewSession("bot", "u1", st)
	ctx := context.Background()
	require.NoError(t, session.AddMessage(ctx, "user", "你好"))
	require.NoError(t, session.AddMessage(ctx, "assistant", "你好呀"))
	_, err := session.UpdateLongTerm(ctx, map[string]any{"summary": "likes hiking"})
	require.NoError(t, err)

	s := New(WithMemoryStore(st))
	var body map[string]any
	decode(t, get(t, s.Handler(), "/api/memory/bot/u1"), &body)

	assert.Len(t, body["short_term"], 2)
	assert.EqualValues(t, 2, body["buffered"])
	longTerm, ok := body["long_term"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "likes hiking", longTerm["summary"])
}

func TestTracesEndpoint(t *testing.T) {
	ring := tracing.NewRingExporter(10)
	tracer := tracing.New(tracing.WithExporter(ring))
	span := tracer.StartAgentSpan("run", map[string]any{"agent": "helper"})
	tracer.EndSpan(span, nil)

	s := New(WithTraceRing(ring))
	var spans []map[string]any
	decode(t, get(t, s.Handler(), "/api/traces"), &spans)
	require.Len(t, spans, 1)
	assert.Equal(t, "run", spans[0]["name"])
	assert.Equal(t, "ok", spans[0]["status"])
}

func TestSchedulerEndpoint(t *testing.T) {
	sc := scheduler.New()
	require.NoError(t, sc.AddTask(&scheduler.Task{
		Name:     "morning_greeting",
		Interval: time.Hour,
		Check: func(ctx context.Context, tc *scheduler.TickContext) ([]string, error) {
			return nil, nil
		},
		Build: func(ctx context.Context, tc *scheduler.TickContext, userID string) (*scheduler.Message, error) {
			return nil, nil
		},
	}))

	s := New(WithScheduler(sc))
	var body map[string]any
	decode(t, get(t, s.Handler(), "/api/scheduler/tasks"), &body)
	assert.Equal(t, false, body["running"])
	tasks, ok := body["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 1)
	task := tasks[0].(map[string]any)
	assert.Equal(t, "morning_greeting", task["name"])
}

func TestUnconfiguredEndpointsAnswer404(t *testing.T) {
	s := New()
	for _, path := range []string{
		"/api/agents", "/api/tools", "/api/memory/a/u", "/api/traces", "/api/scheduler/tasks",
	} {
		rec := get(t, s.Handler(), path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
