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
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/log"
)

// Exporter receives finished root spans. Export runs synchronously on span
// close, so implementations should return quickly.
type Exporter interface {
	Export(span *Span)
}

// NullExporter discards all spans.
type NullExporter struct{}

// Export implements Exporter.
func (NullExporter) Export(*Span) {}

// ConsoleExporter writes a one-line summary of each span to the logger.
type ConsoleExporter struct{}

// Export implements Exporter. Message payloads are omitted to keep log
// lines readable.
func (ConsoleExporter) Export(span *Span) {
	attrs := make(map[string]any, len(span.Attributes))
	for k, v := range span.Attributes {
		if k == "messages" {
			continue
		}
		attrs[k] = v
	}
	log.Infof("[Trace] %s %s | %s | %.1fms | %v",
		strings.ToUpper(string(span.Kind)), span.Name, span.Status, span.DurationMS(), attrs)
}

// CallbackExporter hands each finished root span to a user function.
type CallbackExporter struct {
	fn func(*Span)
}

// NewCallbackExporter wraps fn as an Exporter.
func NewCallbackExporter(fn func(*Span)) *CallbackExporter {
	return &CallbackExporter{fn: fn}
}

// Export implements Exporter.
func (e *CallbackExporter) Export(span *Span) {
	if e.fn != nil {
		e.fn(span)
	}
}

// defaultRingCapacity bounds RingExporter when no capacity is given.
const defaultRingCapacity = 100

// RingExporter keeps the most recent finished root spans in a bounded ring
// so inspection endpoints can serve them without unbounded growth.
type RingExporter struct {
	mu       sync.Mutex
	spans    []*Span
	next     int
	capacity int
}

// NewRingExporter creates a ring holding up to capacity root spans. A
// non-positive capacity falls back to the default.
func NewRingExporter(capacity int) *RingExporter {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &RingExporter{spans: make([]*Span, 0, capacity), capacity: capacity}
}

// Export implements Exporter. The oldest span is overwritten once the ring
// is full.
func (e *RingExporter) Export(span *Span) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.spans) < e.capacity {
		e.spans = append(e.spans, span)
		return
	}
	e.spans[e.next] = span
	e.next = (e.next + 1) % e.capacity
}

// Recent returns up to n root spans, newest first. n <= 0 returns all.
func (e *RingExporter) Recent(n int) []*Span {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := len(e.spans)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]*Span, 0, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the most recently written slot.
		idx := (e.next - 1 - i + total) % total
		out = append(out, e.spans[idx])
	}
	return out
}

// Len returns the number of spans currently held.
func (e *RingExporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spans)
}

var (
	_ Exporter = NullExporter{}
	_ Exporter = ConsoleExporter{}
	_ Exporter = (*CallbackExporter)(nil)
	_ Exporter = (*RingExporter)(nil)
)
