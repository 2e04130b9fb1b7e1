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
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// Mode is how a handoff is requested.
type Mode string

// Handoff modes.
const (
	// ModeToolBased means the source agent's LLM decided via a transfer tool.
	ModeToolBased Mode = "tool_based"
	// ModeCoordinator means a coordinator LLM routed the request.
	ModeCoordinator Mode = "coordinator"
	// ModeAuto lets the engine treat the request as either.
	ModeAuto Mode = "auto"
)

// Status is the outcome class of a handoff.
type Status string

// Handoff statuses.
const (
	StatusSuccess      Status = "success"
	StatusError        Status = "error"
	StatusTimeout      Status = "timeout"
	StatusDenied       Status = "denied"
	StatusLoopDetected Status = "loop_detected"
)

// HandoffErrorCode classifies handoff failures.
type HandoffErrorCode string

// Handoff error codes.
const (
	CodeNotFound     HandoffErrorCode = "NOT_FOUND"
	CodeNotAllowed   HandoffErrorCode = "NOT_ALLOWED"
	CodeSafetyBlock  HandoffErrorCode = "SAFETY_BLOCK"
	CodeTimeout      HandoffErrorCode = "TIMEOUT"
	CodeLoopDetected HandoffErrorCode = "LOOP_DETECTED"
	CodeToolError    HandoffErrorCode = "TOOL_ERROR"
	CodeModelError   HandoffErrorCode = "MODEL_ERROR"
	CodeRateLimited  HandoffErrorCode = "RATE_LIMITED"
)

// Retryable reports whether a failure with this code may succeed on retry
// (with a fresh request id).
func (c HandoffErrorCode) Retryable() bool {
	switch c {
	case CodeTimeout, CodeModelError, CodeToolError, CodeRateLimited:
		return true
	default:
		return false
	}
}

// Status maps the code to the result status class.
func (c HandoffErrorCode) Status() Status {
	switch c {
	case CodeLoopDetected:
		return StatusLoopDetected
	case CodeTimeout:
		return StatusTimeout
	case CodeNotAllowed, CodeSafetyBlock:
		return StatusDenied
	default:
		return StatusError
	}
}

// HandoffError is a structured handoff failure.
type HandoffError struct {
	// Code classifies the failure.
	Code HandoffErrorCode `json:"code"`
	// Message is the human-readable detail.
	Message string `json:"message"`
	// Retryable tells callers whether retrying can help.
	Retryable bool `json:"retryable"`
}

// NewHandoffError builds an error with Retryable derived from the code.
func NewHandoffError(code HandoffErrorCode, message string) *HandoffError {
	return &HandoffError{Code: code, Message: message, Retryable: code.Retryable()}
}

// Error implements the error interface.
func (e *HandoffError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HandoffMessage is the unified cross-agent message format.
type HandoffMessage struct {
	// Role is user, assistant, system, or tool.
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Name optionally identifies the author (tool name, agent name).
	Name string `json:"name,omitempty"`
	// RedactionTags lists the redaction patterns applied to this message.
	RedactionTags []string `json:"redaction_tags,omitempty"`
}

// Attachment is a binary payload carried alongside a handoff. Before
// dispatch the engine can offload Data to an artifact store, leaving only
// Ref.
type Attachment struct {
	// Name is the attachment filename.
	Name string `json:"name"`
	// MimeType is the content type.
	MimeType string `json:"mime_type,omitempty"`
	// Data is the raw payload. Cleared after offloading.
	Data []byte `json:"data,omitempty"`
	// Ref points at the offloaded artifact ("artifact:{name}@{version}").
	Ref string `json:"ref,omitempty"`
}

// HandoffContext is the conversation state passed to the target agent.
type HandoffContext struct {
	// ConversationID groups the handoff with its originating conversation.
	ConversationID string `json:"conversation_id,omitempty"`
	// Messages is the (filtered) conversation to hand over.
	Messages []HandoffMessage `json:"messages,omitempty"`
	// MemorySummary is an opaque memory digest for the target's prompt.
	MemorySummary string `json:"memory_summary,omitempty"`
	// Metadata carries free-form routing hints.
	Metadata map[string]string `json:"metadata,omitempty"`
	// TokenBudget caps the estimated context size. Zero means unlimited;
	// NewHandoffRequest defaults it to 4000.
	TokenBudget int `json:"token_budget,omitempty"`
	// RedactionReport accumulates what the filters redacted.
	RedactionReport []string `json:"redaction_report,omitempty"`
	// Attachments are binary payloads riding along.
	Attachments []Attachment `json:"attachments,omitempty"`
	// Locale is the conversation language (BCP-47).
	Locale string `json:"locale,omitempty"`
	// Platform is the chat platform the conversation runs on.
	Platform string `json:"platform,omitempty"`
}

// HandoffRequest is the delegation contract between agents.
type HandoffRequest struct {
	// FromAgent is the source agent id.
	FromAgent string `json:"from_agent"`
	// ToAgent is the target agent id.
	ToAgent string `json:"to_agent"`
	// Reason is why the source is delegating.
	Reason string `json:"reason,omitempty"`
	// RequestedMode is tool_based, coordinator, or auto.
	RequestedMode Mode `json:"requested_mode,omitempty"`

	// RequestID deduplicates retries; same id returns the cached result.
	RequestID string `json:"request_id,omitempty"`
	// TraceID correlates the handoff with an existing trace.
	TraceID string `json:"trace_id,omitempty"`
	// DeadlineMS bounds execution time. Zero uses the policy default.
	DeadlineMS int `json:"deadline_ms,omitempty"`

	// HopCount is how many handoffs preceded this one.
	HopCount int `json:"hop_count,omitempty"`
	// VisitedAgents lists agents already seen along the chain.
	VisitedAgents []string `json:"visited_agents,omitempty"`

	// CallerOwnerID identifies the calling principal for access checks.
	CallerOwnerID string `json:"caller_owner_id,omitempty"`
	// CallerOrgID identifies the calling org for access checks.
	CallerOrgID string `json:"caller_org_id,omitempty"`

	// Context is the conversation state handed over.
	Context HandoffContext `json:"context"`

	// OriginalToolCallID carries the tool call id that triggered the
	// handoff, for the return message contract.
	OriginalToolCallID string `json:"original_tool_call_id,omitempty"`
}

// NewHandoffRequest builds a request with a generated request id, auto
// mode, and the default context budget and locale.
func NewHandoffRequest(fromAgent, toAgent, reason string) *HandoffRequest {
	return &HandoffRequest{
		FromAgent:     fromAgent,
		ToAgent:       toAgent,
		Reason:        reason,
		RequestedMode: ModeAuto,
		RequestID:     uuid.NewString(),
		Context: HandoffContext{
			TokenBudget: 4000,
			Locale:      "zh-CN",
		},
	}
}

// HandoffResult is the outcome contract of one handoff.
type HandoffResult struct {
	// Output is the target agent's final text.
	Output string `json:"output,omitempty"`
	// AgentID is the target agent id.
	AgentID string `json:"agent_id"`
	// ShouldReturn tells the source to resume with this output.
	ShouldReturn bool `json:"should_return,omitempty"`
	// ReturnContext optionally carries state back to the source.
	ReturnContext *HandoffContext `json:"return_context,omitempty"`

	// Status is the outcome class.
	Status Status `json:"status"`
	// Error details the failure when Status is not success.
	Error *HandoffError `json:"error,omitempty"`
	// Usage is the target run's token usage, when known.
	Usage *model.Usage `json:"usage,omitempty"`
	// DurationMS is the end-to-end wall time in milliseconds.
	DurationMS float64 `json:"duration_ms,omitempty"`
	// RequestID echoes the request's id.
	RequestID string `json:"request_id,omitempty"`
	// CacheHit marks results replayed from the idempotency cache.
	CacheHit bool `json:"cache_hit,omitempty"`
}

// ToReturnMessage renders the result as the standardized tool message fed
// back into the source agent's loop.
func (r *HandoffResult) ToReturnMessage(toolCallID string) model.Message {
	payload := struct {
		AgentID   string       `json:"agent_id"`
		Status    Status       `json:"status"`
		Output    string       `json:"output"`
		Usage     *model.Usage `json:"usage"`
		RequestID string       `json:"request_id"`
		CacheHit  bool         `json:"cache_hit"`
	}{
		AgentID:   r.AgentID,
		Status:    r.Status,
		Output:    r.Output,
		Usage:     r.Usage,
		RequestID: r.RequestID,
		CacheHit:  r.CacheHit,
	}
	content, _ := json.Marshal(payload)
	return model.NewToolMessage(toolCallID, "handoff_result", string(content))
}

// ContextFilter reshapes a handoff context in place before dispatch.
type ContextFilter func(hc *HandoffContext)

// LastNMessages keeps only the last n messages.
func LastNMessages(n int) ContextFilter {
	return func(hc *HandoffContext) {
		if n <= 0 {
			hc.Messages = nil
			return
		}
		if len(hc.Messages) > n {
			hc.Messages = hc.Messages[len(hc.Messages)-n:]
		}
	}
}

// SummaryOnly drops all messages, keeping just the memory summary.
func SummaryOnly() ContextFilter {
	return func(hc *HandoffContext) {
		hc.Messages = nil
	}
}

// AllowAll passes the context through untouched.
func AllowAll() ContextFilter {
	return func(hc *HandoffContext) {}
}

// PlatformRedact builds the platform-level forced redaction filter:
// every match of any pattern (case-insensitive) becomes "[REDACTED]",
// the redaction report gains one line per affected message, and the
// pattern is tagged on the message. Invalid patterns are skipped with a
// warning.
func PlatformRedact(patterns []string) ContextFilter {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	raw := make([]string, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			log.Warnf("Redaction pattern %q invalid, skipping: %v", p, err)
			continue
		}
		compiled = append(compiled, re)
		raw = append(raw, p)
	}
	return func(hc *HandoffContext) {
		for i := range hc.Messages {
			msg := &hc.Messages[i]
			for j, re := range compiled {
				if !re.MatchString(msg.Content) {
					continue
				}
				hc.RedactionReport = append(hc.RedactionReport,
					fmt.Sprintf("Redacted pattern '%s' from %s message", raw[j], msg.Role))
				msg.Content = re.ReplaceAllString(msg.Content, "[REDACTED]")
				msg.RedactionTags = append(msg.RedactionTags, raw[j])
			}
		}
	}
}
