//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agent implements the ReAct agent loop and the multi-agent layer
// built on top of it: agent cards, a visibility-aware registry, the handoff
// engine with policy and idempotency control, and the orchestrator.
//
// The loop drives one conversation turn cycle:
//
//	user input -> model -> [tool calls?] -> execute tools -> feed results -> model -> ... -> final output
//
// Usage:
//
//	reg := tool.NewRegistry()
//	reg.Register(weatherTool)
//
//	bot := agent.New("assistant",
//		agent.WithModel(m),
//		agent.WithInstructions("You are a helpful assistant with tool access."),
//		agent.WithRegistry(reg),
//	)
//
//	result, err := bot.Run(ctx, "What's the weather in Shanghai?")
//	fmt.Println(result.FinalOutput)
package agent

import (
	"context"

	"trpc.group/trpc-go/trpc-botagent-go/guardrail"
	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
	"trpc.group/trpc-go/trpc-botagent-go/tracing"
)

// defaultMaxTurns bounds the number of model invocations per run.
const defaultMaxTurns = 10

// Hooks are optional event callbacks for observability. Any of them may be
// nil. A panicking hook is recovered and logged, never fatal to the run.
type Hooks struct {
	// OnLLMStart fires before each model call with the 1-based turn number.
	OnLLMStart func(ctx context.Context, turn int, req *model.Request)
	// OnLLMEnd fires after each model call.
	OnLLMEnd func(ctx context.Context, turn int, rsp *model.Response)
	// OnToolStart fires before each tool execution.
	OnToolStart func(ctx context.Context, name string, args map[string]any)
	// OnToolEnd fires after each tool execution. err is nil on success.
	OnToolEnd func(ctx context.Context, name string, result string, err error)
	// OnTurnEnd fires once per completed turn.
	OnTurnEnd func(ctx context.Context, turn *TurnRecord)
	// OnError fires when a model error ends the run.
	OnError func(ctx context.Context, err error)
}

// Agent is the ReAct loop driver: it binds a model, a tool registry, and
// the optional guardrail/memory/tracing layers for one named agent.
type Agent struct {
	name         string
	instructions string
	model        model.Model
	registry     *tool.Registry
	guardrails   *guardrail.Manager
	memory       *memory.Session
	tracer       *tracing.Tracer
	maxTurns     int
	hooks        Hooks
	genConfig    model.GenerationConfig
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel sets the LLM backing this agent.
func WithModel(m model.Model) Option {
	return func(a *Agent) { a.model = m }
}

// WithInstructions sets the system prompt prepended to all conversations.
func WithInstructions(instructions string) Option {
	return func(a *Agent) { a.instructions = instructions }
}

// WithRegistry sets the tool registry available to the model.
func WithRegistry(r *tool.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// WithGuardrails installs input/output guards around the run.
func WithGuardrails(m *guardrail.Manager) Option {
	return func(a *Agent) { a.guardrails = m }
}

// WithMemory binds a memory session. Its short-term history feeds the
// conversation when the caller does not supply one, its prompt block is
// appended to the system message, and the exchange is recorded back after
// the run.
func WithMemory(s *memory.Session) Option {
	return func(a *Agent) { a.memory = s }
}

// WithTracer enables span recording for the run and its model/tool calls.
func WithTracer(t *tracing.Tracer) Option {
	return func(a *Agent) { a.tracer = t }
}

// WithMaxTurns caps the number of model invocations per run. Values < 1
// keep the default.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n >= 1 {
			a.maxTurns = n
		}
	}
}

// WithHooks installs event callbacks.
func WithHooks(h Hooks) Option {
	return func(a *Agent) { a.hooks = h }
}

// WithGenerationConfig sets sampling parameters passed on every model call.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(a *Agent) { a.genConfig = cfg }
}

// New creates an agent. A model must be set before Run is called.
func New(name string, opts ...Option) *Agent {
	a := &Agent{
		name:     name,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.name
}

// Instructions returns the agent's system prompt.
func (a *Agent) Instructions() string {
	return a.instructions
}

// Registry returns the agent's tool registry, which may be nil.
func (a *Agent) Registry() *tool.Registry {
	return a.registry
}

// MaxTurns returns the per-run model invocation cap.
func (a *Agent) MaxTurns() int {
	return a.maxTurns
}

// cloneWithRegistry returns a shallow copy of the agent bound to a
// different tool registry. The orchestrator uses it to run an entry
// agent with transfer tools merged in without mutating the original.
func (a *Agent) cloneWithRegistry(r *tool.Registry) *Agent {
	clone := *a
	clone.registry = r
	return &clone
}

// safeHook runs a hook callback, recovering panics so observability code
// can never break the loop.
func safeHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Agent hook %s panicked: %v", name, r)
		}
	}()
	fn()
}
