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
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
	itelemetry "trpc.group/trpc-go/trpc-botagent-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/model"
	"trpc.group/trpc-go/trpc-botagent-go/tracing"
)

// Engine executes handoffs between agents. Whatever the requesting mode,
// every delegation funnels through Execute so access policy, loop
// protection, context filtering, deadline control, and idempotency apply
// uniformly.
type Engine struct {
	registry       *AgentRegistry
	policy         *Policy
	tracer         *tracing.Tracer
	cache          *IdempotencyCache
	platformFilter ContextFilter
	artifacts      artifact.Service
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicy replaces the default access/loop policy.
func WithPolicy(p *Policy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithIdempotencyCache enables result replay and singleflight execution
// per request id.
func WithIdempotencyCache(c *IdempotencyCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithEngineTracer records a span per handoff.
func WithEngineTracer(t *tracing.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithPlatformFilter installs the platform-level forced context filter.
// It runs before the target's own input filter and cannot be bypassed.
func WithPlatformFilter(f ContextFilter) EngineOption {
	return func(e *Engine) { e.platformFilter = f }
}

// WithArtifactService enables attachment offloading: payload bytes are
// stored before dispatch and replaced by artifact references.
func WithArtifactService(s artifact.Service) EngineOption {
	return func(e *Engine) { e.artifacts = s }
}

// NewEngine creates a handoff engine over the given agent registry.
func NewEngine(registry *AgentRegistry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		policy:   &Policy{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's active policy.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Registry returns the engine's agent registry.
func (e *Engine) Registry() *AgentRegistry {
	return e.registry
}

// Execute runs one handoff end to end and always returns a result:
// failures are reported through HandoffResult.Status and Error, never as
// a Go error or panic. Requests carrying a request id are deduplicated
// through the idempotency cache when one is configured.
func (e *Engine) Execute(ctx context.Context, req *HandoffRequest) *HandoffResult {
	start := time.Now()
	if e.cache != nil && req.RequestID != "" {
		result, err := e.cache.Do(req.RequestID, func() (*HandoffResult, error) {
			return e.execute(ctx, req, start), nil
		})
		if err != nil {
			return e.errorWith(req, NewHandoffError(CodeToolError, err.Error()), start)
		}
		return result
	}
	return e.execute(ctx, req, start)
}

// execute is the core pipeline: resolve, check, filter, run with a
// deadline, classify, trace.
func (e *Engine) execute(ctx context.Context, req *HandoffRequest, start time.Time) (result *HandoffResult) {
	var span *tracing.Span
	if e.tracer != nil {
		span = e.tracer.StartSpan(
			fmt.Sprintf("handoff:%s->%s", req.FromAgent, req.ToAgent),
			tracing.KindCustom,
			map[string]any{
				"from_agent": req.FromAgent,
				"to_agent":   req.ToAgent,
				"hop_count":  req.HopCount,
			})
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Handoff engine panicked: %v", r)
			result = e.errorWith(req, NewHandoffError(CodeToolError, fmt.Sprintf("panic: %v", r)), start)
		}
		if e.tracer != nil {
			span.SetAttribute("status", string(result.Status))
			var spanErr error
			if result.Error != nil {
				span.SetAttribute("error_code", string(result.Error.Code))
				spanErr = result.Error
			}
			e.tracer.EndSpan(span, spanErr)
		}
		itelemetry.RecordHandoff(ctx, req.FromAgent, req.ToAgent, string(result.Status), time.Since(start))
	}()

	// Resolve the target.
	target, ok := e.registry.Get(req.ToAgent)
	if !ok {
		return e.errorWith(req,
			NewHandoffError(CodeNotFound, fmt.Sprintf("Agent not found: %s", req.ToAgent)), start)
	}

	// Access and loop protection.
	if herr := e.policy.CheckAccess(req, &target.Card); herr != nil {
		return e.errorWith(req, herr, start)
	}
	if herr := e.policy.CheckLoop(req); herr != nil {
		return e.errorWith(req, herr, start)
	}

	// Context filtering, fixed order: platform filter first (the
	// developer cannot bypass it), then the target's own input filter,
	// then the built-in budget limits.
	if e.platformFilter != nil {
		e.platformFilter(&req.Context)
	}
	if target.InputFilter != nil {
		target.InputFilter(&req.Context)
	}
	e.applyBudget(&req.Context, &target.Card)
	if e.artifacts != nil {
		e.offloadAttachments(ctx, req)
	}

	// Deadline-bounded execution. The target runs in its own goroutine so
	// a stuck runtime still times out.
	deadlineMS := e.policy.deadlineMS(req)
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(deadlineMS)*time.Millisecond)
	defer cancel()
	if e.artifacts != nil {
		// Tool handlers on the target side resolve attachment references
		// through the context.
		runCtx = artifact.ContextWithService(runCtx, e.artifacts)
	}

	type outcome struct {
		res *HandoffResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("agent %s panicked: %v", req.ToAgent, r)}
			}
		}()
		res, err := e.runTarget(runCtx, target, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return e.errorWith(req,
				NewHandoffError(CodeTimeout, fmt.Sprintf("Handoff canceled: %v", ctx.Err())), start)
		}
		return e.errorWith(req,
			NewHandoffError(CodeTimeout, fmt.Sprintf("Handoff timed out after %dms", deadlineMS)), start)
	case out := <-done:
		if out.err != nil {
			return e.errorWith(req, classifyError(out.err), start)
		}
		result = out.res
		result.AgentID = req.ToAgent
		result.ShouldReturn = true
		result.Status = StatusSuccess
		result.DurationMS = durationMS(start)
		result.RequestID = req.RequestID
		if span != nil {
			span.SetAttribute("hop_count", req.HopCount+1)
		}
		return result
	}
}

// runTarget executes the target runtime: the Run override when set,
// otherwise the bound agent loop fed from the handoff context.
func (e *Engine) runTarget(ctx context.Context, target *AgentRuntime, req *HandoffRequest) (*HandoffResult, error) {
	if target.Run != nil {
		return target.Run(ctx, req)
	}
	if target.Agent == nil {
		return nil, NewHandoffError(CodeToolError,
			fmt.Sprintf("Agent %s has no runtime bound", req.ToAgent))
	}

	// The last user message becomes the input; everything before the last
	// message becomes history; the memory summary rides as extra context.
	input := req.Reason
	for i := len(req.Context.Messages) - 1; i >= 0; i-- {
		if req.Context.Messages[i].Role == "user" {
			input = req.Context.Messages[i].Content
			break
		}
	}
	var opts []RunOption
	if n := len(req.Context.Messages); n > 1 {
		history := make([]model.Message, 0, n-1)
		for _, m := range req.Context.Messages[:n-1] {
			history = append(history, model.Message{
				Role:     model.Role(m.Role),
				Content:  m.Content,
				ToolName: m.Name,
			})
		}
		opts = append(opts, WithHistory(history))
	}
	if req.Context.MemorySummary != "" {
		opts = append(opts, WithExtraContext(req.Context.MemorySummary))
	}
	res, err := target.Agent.Run(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	// Only a completed loop counts as success; every other stop reason
	// surfaces as a classified failure.
	switch res.StoppedReason {
	case StopCompleted:
		usage := res.Usage
		return &HandoffResult{
			Output: res.FinalOutput,
			Usage:  &usage,
		}, nil
	case StopInputGuardrail, StopOutputGuardrail:
		return nil, NewHandoffError(CodeSafetyBlock, res.FinalOutput)
	case StopError:
		return nil, NewHandoffError(CodeModelError, res.FinalOutput)
	default:
		return nil, NewHandoffError(CodeToolError,
			fmt.Sprintf("Agent %s stopped after max turns", req.ToAgent))
	}
}

// applyBudget enforces the target's message-count and token limits.
// Oldest messages are dropped whole; the newest always survives.
func (e *Engine) applyBudget(hc *HandoffContext, target *AgentCard) {
	if raw := target.Metadata["max_handoff_messages"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && len(hc.Messages) > n {
			hc.Messages = hc.Messages[len(hc.Messages)-n:]
		}
	}
	budget := hc.TokenBudget
	if target.MaxContextTokens > 0 {
		budget = target.MaxContextTokens
	}
	if budget <= 0 {
		return
	}
	for len(hc.Messages) > 1 && estimateContextTokens(hc.Messages) > budget {
		hc.Messages = hc.Messages[1:]
	}
}

// estimateContextTokens approximates token usage as one token per four
// characters of message content.
func estimateContextTokens(msgs []HandoffMessage) int {
	chars := 0
	for _, m := range msgs {
		chars += utf8.RuneCountInString(m.Content)
	}
	return chars / 4
}

func (e *Engine) errorWith(req *HandoffRequest, herr *HandoffError, start time.Time) *HandoffResult {
	return &HandoffResult{
		AgentID:    req.ToAgent,
		Status:     herr.Code.Status(),
		Error:      herr,
		DurationMS: durationMS(start),
		RequestID:  req.RequestID,
	}
}

// classifyError folds an execution error into a handoff error: typed
// handoff errors keep their code, deadline errors become TIMEOUT, and
// everything else is a TOOL_ERROR.
func classifyError(err error) *HandoffError {
	var herr *HandoffError
	if errors.As(err, &herr) {
		return herr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewHandoffError(CodeTimeout, err.Error())
	}
	return NewHandoffError(CodeToolError, err.Error())
}

func durationMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
