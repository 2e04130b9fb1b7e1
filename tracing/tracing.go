//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tracing provides structured span trees for agent runs. Every unit
// of work (an agent turn, an LLM call, a tool execution, a guardrail check)
// becomes a Span linked to its parent; finished root spans are handed to an
// Exporter together with their whole subtree.
package tracing

import (
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a span measures.
type Kind string

const (
	// KindAgent covers one full agent run.
	KindAgent Kind = "agent"
	// KindLLM covers a single model API call.
	KindLLM Kind = "llm"
	// KindTool covers one tool execution.
	KindTool Kind = "tool"
	// KindGuardrail covers one guardrail check.
	KindGuardrail Kind = "guardrail"
	// KindCustom is for user-defined spans.
	KindCustom Kind = "custom"
)

// Span status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Span is a single unit of work in a trace. Spans are not safe for
// concurrent mutation; each span belongs to the goroutine that started it.
type Span struct {
	SpanID     string
	TraceID    string
	ParentID   string
	Name       string
	Kind       Kind
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Children   []*Span
	Status     string
	Error      string
}

func newSpan(traceID, parentID, name string, kind Kind, attrs map[string]any) *Span {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Span{
		SpanID:     newSpanID(),
		TraceID:    traceID,
		ParentID:   parentID,
		Name:       name,
		Kind:       kind,
		StartTime:  time.Now(),
		Attributes: copied,
		Status:     StatusRunning,
	}
}

// End marks the span as finished. A nil error ends it with status ok,
// otherwise status error with the error text.
func (s *Span) End(err error) {
	s.EndTime = time.Now()
	if err != nil {
		s.Status = StatusError
		s.Error = err.Error()
		return
	}
	s.Status = StatusOK
}

// SetAttribute records a key-value pair on the span.
func (s *Span) SetAttribute(key string, value any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// Duration is the elapsed time of the span; for a running span it is
// measured against the current time.
func (s *Span) Duration() time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// DurationMS is Duration in milliseconds.
func (s *Span) DurationMS() float64 {
	return float64(s.Duration().Microseconds()) / 1000
}

// Map renders the span and its children as a plain serializable structure.
func (s *Span) Map() map[string]any {
	m := map[string]any{
		"span_id":     s.SpanID,
		"trace_id":    s.TraceID,
		"parent_id":   s.ParentID,
		"name":        s.Name,
		"kind":        string(s.Kind),
		"start_time":  unixSeconds(s.StartTime),
		"end_time":    unixSeconds(s.EndTime),
		"duration_ms": math.Round(s.DurationMS()*100) / 100,
		"status":      s.Status,
		"attributes":  s.Attributes,
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	if len(s.Children) > 0 {
		children := make([]map[string]any, 0, len(s.Children))
		for _, c := range s.Children {
			children = append(children, c.Map())
		}
		m["children"] = children
	}
	return m
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func newTraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func newSpanID() string {
	return newTraceID()[:12]
}
