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
	"strings"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/model"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// coordinatorAgentID identifies the coordinator as a handoff source.
const coordinatorAgentID = "coordinator"

// defaultFallbackResponse is returned when the coordinator cannot route.
const defaultFallbackResponse = "I'm sorry, I couldn't process your request."

// defaultCoordinatorPrompt is the coordinator's system prompt preamble.
const defaultCoordinatorPrompt = "You are an intelligent dispatcher that routes user requests to the best specialist agent."

// coordinatorPromptSuffix pins the JSON contract the coordinator model
// must follow. The agent catalog is appended after it.
const coordinatorPromptSuffix = `

You MUST respond with a JSON object in the following format (no other text):
{
    "selected_agents": ["agent_id_1"],
    "execution_mode": "sequential",
    "agent_inputs": {"agent_id_1": "specific input for this agent"},
    "expected_output": "what you expect the agent to produce",
    "fallback_agent": null,
    "fallback_response": "response if all agents fail",
    "reason": "why you chose these agents",
    "confidence": 0.9
}

Available agents:
`

// CoordinatorDecision is the structured routing contract the coordinator
// model must output. Confidence and Constraints are informational only
// and never interpreted by the orchestrator.
type CoordinatorDecision struct {
	SelectedAgents   []string          `json:"selected_agents"`
	ExecutionMode    string            `json:"execution_mode"`
	AgentInputs      map[string]string `json:"agent_inputs"`
	ExpectedOutput   string            `json:"expected_output"`
	FallbackAgent    string            `json:"fallback_agent"`
	FallbackResponse string            `json:"fallback_response"`
	Reason           string            `json:"reason"`
	Confidence       float64           `json:"confidence"`
	Constraints      map[string]any    `json:"constraints"`
}

// ParseCoordinatorDecision parses a coordinator reply permissively:
// markdown fences are stripped, the first {...} substring is taken, and
// malformed input yields an empty selection with the stock fallback.
func ParseCoordinatorDecision(text string) *CoordinatorDecision {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		var kept []string
		for _, line := range strings.Split(cleaned, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		cleaned = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	decision := &CoordinatorDecision{ExecutionMode: "sequential", Confidence: 1}
	if err := json.Unmarshal([]byte(cleaned), decision); err != nil {
		log.Warnf("Coordinator decision unparseable: %v", err)
		return &CoordinatorDecision{
			ExecutionMode:    "sequential",
			Confidence:       1,
			FallbackResponse: defaultFallbackResponse,
		}
	}
	if decision.ExecutionMode == "" {
		decision.ExecutionMode = "sequential"
	}
	return decision
}

// Orchestrator routes user input to agents in one of two modes: a
// tool-based entry agent whose LLM decides via transfer tools, or a
// dedicated coordinator model that picks agents through a structured
// decision. Both modes execute through the same handoff engine.
type Orchestrator struct {
	registry          *AgentRegistry
	engine            *Engine
	mode              Mode
	entryAgentID      string
	coordinator       model.Model
	coordinatorPrompt string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMode selects tool_based (default) or coordinator routing.
func WithMode(mode Mode) OrchestratorOption {
	return func(o *Orchestrator) { o.mode = mode }
}

// WithEntryAgent names the agent driving tool-based mode.
func WithEntryAgent(agentID string) OrchestratorOption {
	return func(o *Orchestrator) { o.entryAgentID = agentID }
}

// WithCoordinatorModel sets the LLM used for coordinator decisions.
func WithCoordinatorModel(m model.Model) OrchestratorOption {
	return func(o *Orchestrator) { o.coordinator = m }
}

// WithCoordinatorPrompt replaces the coordinator's prompt preamble. The
// JSON contract suffix and agent catalog are always appended.
func WithCoordinatorPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.coordinatorPrompt = prompt }
}

// NewOrchestrator creates an orchestrator over a registry and engine.
func NewOrchestrator(registry *AgentRegistry, engine *Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:          registry,
		engine:            engine,
		mode:              ModeToolBased,
		coordinatorPrompt: defaultCoordinatorPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run routes one user input. The caller identity scopes agent visibility
// and handoff access; memorySummary, when set, rides along as extra
// context. Every path returns a HandoffResult.
func (o *Orchestrator) Run(ctx context.Context, input string, caller Caller, memorySummary string) *HandoffResult {
	if o.mode == ModeCoordinator {
		return o.runCoordinator(ctx, input, caller, memorySummary)
	}
	return o.runToolBased(ctx, input, caller, memorySummary)
}

// runToolBased drives the entry agent's loop with synthesized transfer
// tools merged into its registry, so the LLM can chain
// "handoff, observe, answer".
func (o *Orchestrator) runToolBased(ctx context.Context, input string, caller Caller, memorySummary string) *HandoffResult {
	start := time.Now()
	entry, ok := o.registry.Get(o.entryAgentID)
	if !ok {
		return &HandoffResult{
			Status: StatusError,
			Error:  NewHandoffError(CodeNotFound, fmt.Sprintf("Entry agent not found: %s", o.entryAgentID)),
		}
	}
	if entry.Agent == nil {
		return &HandoffResult{
			AgentID: o.entryAgentID,
			Status:  StatusError,
			Error: NewHandoffError(CodeToolError,
				fmt.Sprintf("Agent %s has no runtime bound", o.entryAgentID)),
		}
	}

	transfer := func(ctx context.Context, targetID, reason string) (string, error) {
		req := NewHandoffRequest(o.entryAgentID, targetID, reason)
		if req.Reason == "" {
			req.Reason = input
		}
		req.RequestedMode = ModeToolBased
		req.CallerOwnerID = caller.OwnerID
		req.CallerOrgID = caller.OrgID
		req.Context.Messages = []HandoffMessage{{Role: "user", Content: input}}
		req.Context.MemorySummary = memorySummary
		result := o.engine.Execute(ctx, req)
		if result.Error != nil {
			return fmt.Sprintf("Handoff failed: %s", result.Error.Message), nil
		}
		return result.Output, nil
	}

	merged := tool.NewRegistry()
	if reg := entry.Agent.Registry(); reg != nil {
		for _, name := range reg.Names() {
			if t, ok := reg.Get(name); ok {
				merged.Register(t)
			}
		}
	}
	for _, t := range o.registry.TransferTools(&entry.Card, transfer) {
		merged.Register(t)
	}

	var runOpts []RunOption
	if memorySummary != "" {
		runOpts = append(runOpts, WithExtraContext(memorySummary))
	}
	res, err := entry.Agent.cloneWithRegistry(merged).Run(ctx, input, runOpts...)
	if err != nil {
		return &HandoffResult{
			AgentID:    o.entryAgentID,
			Status:     StatusError,
			Error:      NewHandoffError(CodeModelError, err.Error()),
			DurationMS: durationMS(start),
		}
	}
	return loopResultToHandoff(o.entryAgentID, res, start)
}

// runCoordinator asks the coordinator model for a structured routing
// decision and executes the selected agents through the engine.
func (o *Orchestrator) runCoordinator(ctx context.Context, input string, caller Caller, memorySummary string) *HandoffResult {
	start := time.Now()
	if o.coordinator == nil {
		return &HandoffResult{
			Status: StatusError,
			Error:  NewHandoffError(CodeModelError, "No coordinator LLM"),
		}
	}

	systemPrompt := o.coordinatorPrompt + coordinatorPromptSuffix + o.catalog(caller)
	req := &model.Request{Messages: []model.Message{
		model.NewSystemMessage(systemPrompt),
		model.NewUserMessage(input),
	}}
	rsp, err := o.coordinator.GenerateContent(ctx, req)
	if err == nil && rsp != nil && rsp.Error != nil {
		err = fmt.Errorf("model error: %s", rsp.Error.Message)
	}
	if err != nil {
		return &HandoffResult{
			Status:     StatusError,
			Error:      NewHandoffError(CodeModelError, err.Error()),
			DurationMS: durationMS(start),
		}
	}
	content := rsp.Content()

	decision := ParseCoordinatorDecision(content)
	selected := make([]string, 0, len(decision.SelectedAgents))
	for _, id := range decision.SelectedAgents {
		if !o.registry.Has(id) {
			log.Warnf("Coordinator selected unknown agent %q, dropping", id)
			continue
		}
		selected = append(selected, id)
	}
	if len(selected) == 0 {
		output := decision.FallbackResponse
		if output == "" {
			output = content
		}
		return &HandoffResult{
			Output:       output,
			ShouldReturn: true,
			Status:       StatusSuccess,
			DurationMS:   durationMS(start),
		}
	}

	var results []*HandoffResult
	if decision.ExecutionMode == "parallel" {
		results = make([]*HandoffResult, len(selected))
		var wg sync.WaitGroup
		for i, id := range selected {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				results[i] = o.engine.Execute(ctx, o.memberRequest(id, decision, input, caller, memorySummary))
			}(i, id)
		}
		wg.Wait()
	} else {
		for _, id := range selected {
			result := o.engine.Execute(ctx, o.memberRequest(id, decision, input, caller, memorySummary))
			results = append(results, result)
			if result.Status == StatusSuccess {
				break
			}
		}
	}

	// First success in selection order wins.
	for _, r := range results {
		if r.Status == StatusSuccess {
			return r
		}
	}
	if decision.FallbackResponse != "" {
		return &HandoffResult{
			Output:       decision.FallbackResponse,
			ShouldReturn: true,
			Status:       StatusSuccess,
			DurationMS:   durationMS(start),
		}
	}
	return results[len(results)-1]
}

// memberRequest builds the handoff request for one selected agent.
func (o *Orchestrator) memberRequest(agentID string, decision *CoordinatorDecision, input string, caller Caller, memorySummary string) *HandoffRequest {
	agentInput := decision.AgentInputs[agentID]
	if agentInput == "" {
		agentInput = input
	}
	req := NewHandoffRequest(coordinatorAgentID, agentID, decision.Reason)
	req.RequestedMode = ModeCoordinator
	req.CallerOwnerID = caller.OwnerID
	req.CallerOrgID = caller.OrgID
	req.Context.Messages = []HandoffMessage{{Role: "user", Content: agentInput}}
	req.Context.MemorySummary = memorySummary
	return req
}

// catalog renders the agents visible to the caller for the coordinator
// prompt.
func (o *Orchestrator) catalog(caller Caller) string {
	var lines []string
	for _, card := range o.registry.List() {
		if !card.Visible(caller) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s — %s (skills: %s)",
			card.AgentID, card.Name, card.Description, strings.Join(card.Skills, ", ")))
	}
	return strings.Join(lines, "\n")
}

// loopResultToHandoff folds an agent loop result into the handoff result
// contract.
func loopResultToHandoff(agentID string, res *AgentResult, start time.Time) *HandoffResult {
	out := &HandoffResult{
		Output:       res.FinalOutput,
		AgentID:      agentID,
		ShouldReturn: true,
		DurationMS:   durationMS(start),
		RequestID:    res.RequestID,
	}
	usage := res.Usage
	out.Usage = &usage
	switch res.StoppedReason {
	case StopCompleted:
		out.Status = StatusSuccess
	case StopInputGuardrail, StopOutputGuardrail:
		out.Status = StatusDenied
		out.Error = NewHandoffError(CodeSafetyBlock, res.FinalOutput)
	case StopError:
		out.Status = StatusError
		out.Error = NewHandoffError(CodeModelError, res.FinalOutput)
	default:
		out.Status = StatusError
		out.Error = NewHandoffError(CodeToolError,
			fmt.Sprintf("Agent %s stopped after max turns", agentID))
	}
	return out
}
