//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tracing

import (
	"fmt"
	"sync"
)

// Option configures a Tracer.
type Option func(*Tracer)

// WithExporter sets where finished root spans go. Default is NullExporter.
func WithExporter(e Exporter) Option {
	return func(t *Tracer) {
		if e != nil {
			t.exporter = e
		}
	}
}

// WithEnabled turns tracing on or off at construction time.
func WithEnabled(enabled bool) Option {
	return func(t *Tracer) {
		t.enabled = enabled
	}
}

// Tracer creates spans and maintains the current trace and span stack.
// The stack is per tracer, not per goroutine: callers wrap concurrent work
// in their own tracers or serialize span creation themselves.
type Tracer struct {
	mu       sync.Mutex
	exporter Exporter
	enabled  bool
	traceID  string
	stack    []*Span
}

// New creates a tracer. Without options it is enabled and discards spans.
func New(opts ...Option) *Tracer {
	t := &Tracer{exporter: NullExporter{}, enabled: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enabled reports whether the tracer records spans.
func (t *Tracer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled toggles span recording.
func (t *Tracer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// NewTrace starts a fresh trace, clearing the span stack, and returns the
// new trace ID.
func (t *Tracer) NewTrace() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetTraceLocked()
}

func (t *Tracer) resetTraceLocked() string {
	t.traceID = newTraceID()
	t.stack = nil
	return t.traceID
}

// StartSpan opens a span under the current stack top and pushes it. The
// returned span must be closed with EndSpan. A disabled tracer returns a
// detached span that is never linked or exported.
func (t *Tracer) StartSpan(name string, kind Kind, attrs map[string]any) *Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return newSpan("", "", name, kind, attrs)
	}
	if t.traceID == "" {
		t.resetTraceLocked()
	}
	parentID := ""
	if n := len(t.stack); n > 0 {
		parentID = t.stack[n-1].SpanID
	}
	s := newSpan(t.traceID, parentID, name, kind, attrs)
	if n := len(t.stack); n > 0 {
		t.stack[n-1].Children = append(t.stack[n-1].Children, s)
	}
	t.stack = append(t.stack, s)
	return s
}

// EndSpan closes the span with the given error (nil means ok), pops it
// from the stack, and exports it when it is a root span.
func (t *Tracer) EndSpan(span *Span, err error) {
	if span == nil {
		return
	}
	t.mu.Lock()
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i] == span {
			t.stack = t.stack[:i]
			break
		}
	}
	span.End(err)
	export := t.enabled && span.ParentID == "" && span.TraceID != ""
	exporter := t.exporter
	t.mu.Unlock()

	if export && exporter != nil {
		exporter.Export(span)
	}
}

// WithSpan runs fn inside a span and closes it with fn's error. A panic in
// fn still ends the span (status error) before propagating.
func (t *Tracer) WithSpan(name string, kind Kind, attrs map[string]any, fn func(*Span) error) (err error) {
	span := t.StartSpan(name, kind, attrs)
	defer func() {
		if r := recover(); r != nil {
			t.EndSpan(span, fmt.Errorf("%v", r))
			panic(r)
		}
		t.EndSpan(span, err)
	}()
	err = fn(span)
	return err
}

// StartAgentSpan opens an agent-level span.
func (t *Tracer) StartAgentSpan(name string, attrs map[string]any) *Span {
	return t.StartSpan(name, KindAgent, attrs)
}

// StartLLMSpan opens a span for one model call. The model name, when set,
// becomes part of the span name and a "model" attribute.
func (t *Tracer) StartLLMSpan(modelName string, attrs map[string]any) *Span {
	merged := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		merged[k] = v
	}
	name := "llm"
	if modelName != "" {
		name = "llm:" + modelName
		merged["model"] = modelName
	}
	return t.StartSpan(name, KindLLM, merged)
}

// StartToolSpan opens a span for one tool execution.
func (t *Tracer) StartToolSpan(toolName string, attrs map[string]any) *Span {
	return t.StartSpan("tool:"+toolName, KindTool, attrs)
}

// StartGuardrailSpan opens a span for one guardrail check.
func (t *Tracer) StartGuardrailSpan(guardrailName string, attrs map[string]any) *Span {
	return t.StartSpan("guardrail:"+guardrailName, KindGuardrail, attrs)
}
