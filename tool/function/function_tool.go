//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function wraps typed Go functions as callable tools, deriving
// their JSON-Schema declarations from the input and output types.
package function

import (
	"context"
	"encoding/json"
	"reflect"

	itool "trpc.group/trpc-go/trpc-botagent-go/internal/tool"
	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// FunctionTool adapts a typed function to the CallableTool interface.
// Arguments are decoded from the model's JSON into I; the returned O is
// handed back as the tool result.
type FunctionTool[I, O any] struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	fn           func(context.Context, I) (O, error)
}

// Option configures a FunctionTool.
type Option func(*options)

type options struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
}

// WithName sets the tool name.
//
// Names must match ^[a-zA-Z0-9_-]+$ for compatibility across LLM APIs;
// some providers reject anything else.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDescription sets the tool description.
func WithDescription(description string) Option {
	return func(o *options) { o.description = description }
}

// WithInputSchema overrides the derived input schema.
func WithInputSchema(schema *tool.Schema) Option {
	return func(o *options) { o.inputSchema = schema }
}

// WithOutputSchema overrides the derived output schema.
func WithOutputSchema(schema *tool.Schema) Option {
	return func(o *options) { o.outputSchema = schema }
}

// NewFunctionTool wraps fn as a callable tool. The input and output
// schemas are derived from I and O unless overridden.
func NewFunctionTool[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		log.Warnf("FunctionTool: name is empty")
	}
	if o.description == "" {
		log.Warnf("FunctionTool: description is empty")
	}

	var (
		emptyI I
		emptyO O
	)
	inputSchema := o.inputSchema
	if inputSchema == nil {
		inputSchema = itool.GenerateJSONSchema(reflect.TypeOf(emptyI))
	}
	outputSchema := o.outputSchema
	if outputSchema == nil {
		outputSchema = itool.GenerateJSONSchema(reflect.TypeOf(emptyO))
	}
	return &FunctionTool[I, O]{
		name:         o.name,
		description:  o.description,
		inputSchema:  inputSchema,
		outputSchema: outputSchema,
		fn:           fn,
	}
}

// Call implements tool.CallableTool.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	if len(jsonArgs) == 0 {
		jsonArgs = []byte("{}")
	}
	var input I
	if err := json.Unmarshal(jsonArgs, &input); err != nil {
		return nil, err
	}
	return ft.fn(ctx, input)
}

// Declaration implements tool.Tool.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:         ft.name,
		Description:  ft.description,
		InputSchema:  ft.inputSchema,
		OutputSchema: ft.outputSchema,
	}
}
