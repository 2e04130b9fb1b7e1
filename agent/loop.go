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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-botagent-go/guardrail"
	itelemetry "trpc.group/trpc-go/trpc-botagent-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
	"trpc.group/trpc-go/trpc-botagent-go/tracing"
)

// runOptions collects per-Run knobs.
type runOptions struct {
	history      []model.Message
	extraContext string
	requestID    string
}

// RunOption configures a single Run call.
type RunOption func(*runOptions)

// WithHistory supplies prior conversation messages. It overrides the
// history the memory session would otherwise provide.
func WithHistory(history []model.Message) RunOption {
	return func(o *runOptions) { o.history = history }
}

// WithExtraContext adds an extra system message after the instructions,
// e.g. a memory summary handed over from another agent.
func WithExtraContext(extra string) RunOption {
	return func(o *runOptions) { o.extraContext = extra }
}

// WithRequestID pins the run's request id instead of generating one.
func WithRequestID(id string) RunOption {
	return func(o *runOptions) { o.requestID = id }
}

// Run executes the agent loop for one user input and returns the result.
//
// The returned error is non-nil only for configuration problems (no model).
// Model failures, tool failures, and guardrail trips are all reported
// through AgentResult.StoppedReason so callers always get the turn trace.
func (a *Agent) Run(ctx context.Context, input string, opts ...RunOption) (*AgentResult, error) {
	if a.model == nil {
		return nil, fmt.Errorf("agent %q has no model", a.name)
	}
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.requestID == "" {
		ro.requestID = uuid.NewString()
	}

	result := &AgentResult{RequestID: ro.requestID}
	start := time.Now()
	var runErr error

	var rootSpan *tracing.Span
	if a.tracer != nil {
		rootSpan = a.tracer.StartAgentSpan("agent:"+a.name, map[string]any{
			"request_id": ro.requestID,
			"max_turns":  a.maxTurns,
		})
	}
	defer func() {
		if a.tracer != nil {
			rootSpan.SetAttribute("stopped_reason", result.StoppedReason)
			rootSpan.SetAttribute("total_turns", result.TotalTurns)
			a.tracer.EndSpan(rootSpan, runErr)
		}
		itelemetry.RecordAgentRun(ctx, a.name, result.StoppedReason, time.Since(start))
	}()

	// Input guards run before anything reaches the model.
	if a.guardrails != nil && a.guardrails.InputCount() > 0 {
		if _, err := a.guardrails.CheckInput(ctx, &guardrail.Context{Text: input}); err != nil {
			result.StoppedReason = StopInputGuardrail
			result.FinalOutput = err.Error()
			runErr = err
			return result, nil
		}
	}

	messages := a.buildMessages(ctx, input, &ro)
	var tools []model.Tool
	if a.registry != nil && a.registry.Len() > 0 {
		tools = a.registry.Specs()
	}

	for turn := 1; turn <= a.maxTurns; turn++ {
		turnRec := TurnRecord{Index: turn}
		req := &model.Request{
			Messages:         messages,
			GenerationConfig: a.genConfig,
			Tools:            tools,
		}
		if a.hooks.OnLLMStart != nil {
			safeHook("OnLLMStart", func() { a.hooks.OnLLMStart(ctx, turn, req) })
		}
		rsp, err := a.callModel(ctx, req)
		if err != nil {
			log.Errorf("Agent %s turn %d model call failed: %v", a.name, turn, err)
			if a.hooks.OnError != nil {
				safeHook("OnError", func() { a.hooks.OnError(ctx, err) })
			}
			result.StoppedReason = StopError
			result.FinalOutput = err.Error()
			result.TotalTurns = turn
			runErr = err
			break
		}
		if a.hooks.OnLLMEnd != nil {
			safeHook("OnLLMEnd", func() { a.hooks.OnLLMEnd(ctx, turn, rsp) })
		}

		msg := rsp.Choices[0].Message
		turnRec.AssistantContent = msg.Content
		if rsp.Usage != nil {
			turnRec.Usage = *rsp.Usage
			result.Usage.Add(rsp.Usage)
		}
		result.TotalTurns = turn

		// No tool calls means the model is done.
		if len(msg.ToolCalls) == 0 {
			turnRec.IsFinal = true
			result.FinalOutput = msg.Content
			result.StoppedReason = StopCompleted
			if err := a.checkOutput(ctx, messages, result); err != nil {
				runErr = err
			}
			result.Turns = append(result.Turns, turnRec)
			if a.hooks.OnTurnEnd != nil {
				safeHook("OnTurnEnd", func() { a.hooks.OnTurnEnd(ctx, &turnRec) })
			}
			break
		}

		// Feed the tool round back: assistant message carrying the calls,
		// then one tool message per call, in response order.
		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		for _, tc := range msg.ToolCalls {
			record, resultText := a.executeToolCall(ctx, tc)
			turnRec.ToolCalls = append(turnRec.ToolCalls, record)
			result.ToolCallsCount++
			messages = append(messages, model.NewToolMessage(tc.ID, tc.Function.Name, resultText))
		}

		result.Turns = append(result.Turns, turnRec)
		if a.hooks.OnTurnEnd != nil {
			safeHook("OnTurnEnd", func() { a.hooks.OnTurnEnd(ctx, &turnRec) })
		}

		if turn == a.maxTurns {
			result.StoppedReason = StopMaxTurns
			// The last model text, if any, serves as a degraded answer.
			result.FinalOutput = turnRec.AssistantContent
		}
	}

	result.Messages = messages
	a.saveExchange(ctx, input, result)
	return result, nil
}

// buildMessages assembles the initial conversation: system prompt with the
// memory block, optional extra context, prior history, then the user input.
func (a *Agent) buildMessages(ctx context.Context, input string, ro *runOptions) []model.Message {
	system := a.instructions
	history := ro.history

	if a.memory != nil {
		mctx, err := a.memory.Load(ctx)
		if err != nil {
			log.Warnf("Agent %s memory load failed: %v", a.name, err)
		} else {
			if block := a.memory.FormatForPrompt(""); block != "" {
				if system != "" {
					system += "\n\n" + block
				} else {
					system = block
				}
			}
			if history == nil {
				history = toModelMessages(mctx.ShortTerm)
			}
		}
	}

	messages := make([]model.Message, 0, len(history)+3)
	if system != "" {
		messages = append(messages, model.NewSystemMessage(system))
	}
	if ro.extraContext != "" {
		messages = append(messages, model.NewSystemMessage(ro.extraContext))
	}
	messages = append(messages, history...)
	messages = append(messages, model.NewUserMessage(input))
	return messages
}

// toModelMessages converts persisted memory messages into model messages.
func toModelMessages(stored []memory.Message) []model.Message {
	if len(stored) == 0 {
		return nil
	}
	history := make([]model.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, model.Message{
			Role:    model.Role(m.Role),
			Content: m.Content,
		})
	}
	return history
}

// callModel runs one model invocation under a span and records the chat
// metric. API-level response errors are folded into the returned error.
func (a *Agent) callModel(ctx context.Context, req *model.Request) (*model.Response, error) {
	modelName := a.model.Info().Name
	var span *tracing.Span
	if a.tracer != nil {
		span = a.tracer.StartLLMSpan(modelName, nil)
	}
	start := time.Now()
	rsp, err := a.model.GenerateContent(ctx, req)
	if err == nil && rsp != nil && rsp.Error != nil {
		err = fmt.Errorf("model error: %s", rsp.Error.Message)
	}
	if err == nil && (rsp == nil || len(rsp.Choices) == 0) {
		err = fmt.Errorf("model %s returned no choices", modelName)
	}
	var promptTokens, completionTokens int64
	if rsp != nil && rsp.Usage != nil {
		promptTokens = int64(rsp.Usage.PromptTokens)
		completionTokens = int64(rsp.Usage.CompletionTokens)
	}
	itelemetry.RecordChat(ctx, modelName, promptTokens, completionTokens, time.Since(start), err)
	if a.tracer != nil {
		if rsp != nil && rsp.Usage != nil {
			span.SetAttribute("prompt_tokens", rsp.Usage.PromptTokens)
			span.SetAttribute("completion_tokens", rsp.Usage.CompletionTokens)
		}
		a.tracer.EndSpan(span, err)
	}
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

// executeToolCall runs a single tool call end to end: argument parsing,
// hooks, span, metric, and error capture. Failures become an "error: ..."
// result text so the model can read them and adapt.
func (a *Agent) executeToolCall(ctx context.Context, tc model.ToolCall) (ToolCallRecord, string) {
	name := tc.Function.Name
	args := map[string]any{}
	if len(tc.Function.Arguments) > 0 {
		if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
			log.Warnf("Tool %s arguments unparseable, using empty args: %v", name, err)
			args = map[string]any{}
		}
	}
	record := ToolCallRecord{ID: tc.ID, Name: name, Arguments: args}

	if a.hooks.OnToolStart != nil {
		safeHook("OnToolStart", func() { a.hooks.OnToolStart(ctx, name, args) })
	}
	var span *tracing.Span
	if a.tracer != nil {
		span = a.tracer.StartToolSpan(name, map[string]any{"call_id": tc.ID})
	}
	start := time.Now()
	raw, err := a.executeTool(ctx, name, args)
	elapsed := time.Since(start)
	itelemetry.RecordToolCall(ctx, name, elapsed, err)
	if a.tracer != nil {
		a.tracer.EndSpan(span, err)
	}
	record.DurationMS = float64(elapsed) / float64(time.Millisecond)

	var resultText string
	if err != nil {
		record.Error = err.Error()
		resultText = "error: " + err.Error()
		log.Warnf("Tool %s failed: %v", name, err)
	} else {
		resultText = stringifyToolResult(raw)
		record.Result = resultText
	}
	if a.hooks.OnToolEnd != nil {
		safeHook("OnToolEnd", func() { a.hooks.OnToolEnd(ctx, name, record.Result, err) })
	}
	return record, resultText
}

func (a *Agent) executeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if a.registry == nil {
		return nil, fmt.Errorf("%w: %q", tool.ErrToolNotFound, name)
	}
	return a.registry.Execute(ctx, name, args)
}

// checkOutput runs the output guards on a completed result and replaces
// the output with the tripwire message when one fires.
func (a *Agent) checkOutput(ctx context.Context, messages []model.Message, result *AgentResult) error {
	if a.guardrails == nil || a.guardrails.OutputCount() == 0 {
		return nil
	}
	gc := &guardrail.Context{Text: result.FinalOutput, Messages: messages}
	if _, err := a.guardrails.CheckOutput(ctx, gc); err != nil {
		result.StoppedReason = StopOutputGuardrail
		result.FinalOutput = err.Error()
		return err
	}
	return nil
}

// saveExchange records the user/assistant exchange in the memory session
// and kicks extraction. Only runs that produced a model-authored answer are
// recorded; guardrail trips and model failures never pollute memory.
func (a *Agent) saveExchange(ctx context.Context, input string, result *AgentResult) {
	if a.memory == nil {
		return
	}
	if result.StoppedReason != StopCompleted && result.StoppedReason != StopMaxTurns {
		return
	}
	if err := a.memory.AddMessage(ctx, model.RoleUser.String(), input); err != nil {
		log.Warnf("Agent %s memory save (user) failed: %v", a.name, err)
		return
	}
	if result.FinalOutput != "" {
		if err := a.memory.AddMessage(ctx, model.RoleAssistant.String(), result.FinalOutput); err != nil {
			log.Warnf("Agent %s memory save (assistant) failed: %v", a.name, err)
		}
	}
	if _, err := a.memory.ExtractIfNeeded(ctx); err != nil {
		log.Warnf("Agent %s memory extraction failed: %v", a.name, err)
	}
}

// stringifyToolResult renders a tool's return value as the text fed back
// to the model. Strings pass through, everything else is JSON-encoded.
func stringifyToolResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
