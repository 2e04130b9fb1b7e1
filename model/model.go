//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the LLM request and response types and the Model
// interface that provider adapters implement.
package model

import "context"

// Info describes a model implementation.
type Info struct {
	// Name is the model name, e.g. "gpt-4o-mini".
	Name string
}

// Model is the contract between the agent loop and an LLM provider.
//
// GenerateContent sends the full conversation plus the exported tool
// specifications and returns a single completed response. Implementations
// must honor ctx cancellation and return an error for transport-level
// failures; API-level failures are reported via Response.Error.
type Model interface {
	// Info returns basic information about the model.
	Info() Info
	// GenerateContent generates a completion for the given request.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)
}
