//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package guardrail provides input and output safety checks with tripwire
// semantics: a failed check surfaces as a typed error that callers can use
// to halt an agent turn before or after the model runs.
package guardrail

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// Kind distinguishes where in the turn a guard runs.
type Kind string

const (
	// KindInput marks guards that run on user input before the model.
	KindInput Kind = "input"
	// KindOutput marks guards that run on the final answer before delivery.
	KindOutput Kind = "output"
)

// Context carries the text under inspection plus whatever surrounding
// state the caller wants guards to see.
type Context struct {
	// Text is the content to check: user input for input guards, the
	// agent's answer for output guards.
	Text string
	// Messages is the full message history, when available.
	Messages []model.Message
	// Extra holds arbitrary caller metadata (user id, channel, ...).
	Extra map[string]any
}

// Result is the outcome of a single guard check.
type Result struct {
	// Passed reports whether the content is safe.
	Passed bool `json:"passed"`
	// Reason explains the failure when Passed is false.
	Reason string `json:"reason,omitempty"`
	// GuardrailName identifies the guard that produced the result. The
	// manager fills it in, guards never need to set it.
	GuardrailName string `json:"guardrail_name,omitempty"`
	// Metadata carries additional data from the check.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Func is a single guard check. Returning an error counts as a failed
// check with the error text as the reason.
type Func func(ctx context.Context, gc *Context) (*Result, error)

// Guard is a named check bound to the phase it protects.
type Guard struct {
	Name string
	Kind Kind
	Func Func
}

// NewInputGuard builds an input guard from a check function.
func NewInputGuard(name string, fn Func) *Guard {
	return &Guard{Name: name, Kind: KindInput, Func: fn}
}

// NewOutputGuard builds an output guard from a check function.
func NewOutputGuard(name string, fn Func) *Guard {
	return &Guard{Name: name, Kind: KindOutput, Func: fn}
}

// InputTriggeredError is the tripwire raised when an input guard fails.
type InputTriggeredError struct {
	GuardrailName string
	Reason        string
}

// Error implements the error interface.
func (e *InputTriggeredError) Error() string {
	return fmt.Sprintf("Input guardrail triggered: %s — %s", e.GuardrailName, e.Reason)
}

// OutputTriggeredError is the tripwire raised when an output guard fails.
type OutputTriggeredError struct {
	GuardrailName string
	Reason        string
}

// Error implements the error interface.
func (e *OutputTriggeredError) Error() string {
	return fmt.Sprintf("Output guardrail triggered: %s — %s", e.GuardrailName, e.Reason)
}
