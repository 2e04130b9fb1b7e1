//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// Context carries per-invocation metadata to tool handlers: which tool is
// running, the model's tool-call id, and caller-supplied extras. It travels
// on the context.Context so handlers that don't need it ignore it.
type Context struct {
	// ToolName is the registered name being invoked.
	ToolName string
	// CallID is the model-assigned tool call id, when dispatched from a
	// model turn.
	CallID string
	// Extra holds caller-defined values (user id, session handles, ...).
	Extra map[string]any
}

type contextKey struct{}

// NewContext returns a context carrying tc.
func NewContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the invocation metadata, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok
}

// CallIDFromContext returns the model tool-call id, or "" when the handler
// was not dispatched from a model turn.
func CallIDFromContext(ctx context.Context) string {
	if tc, ok := FromContext(ctx); ok {
		return tc.CallID
	}
	return ""
}
