//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the tool abstraction exposed to models: declarations
// with JSON-Schema input descriptions, callable implementations, and the
// registry that dispatches model tool calls to them.
package tool

import (
	"context"
	"encoding/json"
)

// Schema is a JSON-Schema fragment describing a tool's input or output.
type Schema struct {
	// Type is the JSON type: "object", "string", "integer", "number",
	// "boolean", "array".
	Type string `json:"type,omitempty"`
	// Description documents the field for the model.
	Description string `json:"description,omitempty"`
	// Properties lists object fields.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Required lists mandatory object fields.
	Required []string `json:"required,omitempty"`
	// Items describes array elements.
	Items *Schema `json:"items,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// Default is filled in for omitted optional arguments at dispatch.
	Default any `json:"default,omitempty"`
	// AdditionalProperties describes map values.
	AdditionalProperties *Schema `json:"additionalProperties,omitempty"`
	// Ref points into Defs for recursive types.
	Ref string `json:"$ref,omitempty"`
	// Defs holds reusable definitions referenced by Ref.
	Defs map[string]*Schema `json:"$defs,omitempty"`
}

// Declaration is the tool metadata exported to models.
type Declaration struct {
	// Name is the tool name. Names must match ^[a-zA-Z0-9_.-]+$ for broad
	// LLM API compatibility; the "mcp." prefix is reserved for imported
	// MCP tools.
	Name string `json:"name"`
	// Description tells the model when to call the tool.
	Description string `json:"description"`
	// InputSchema describes the arguments object.
	InputSchema *Schema `json:"inputSchema,omitempty"`
	// OutputSchema describes the result, when known.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
	// RawInputSchema, when set, is exported verbatim instead of
	// InputSchema. Imported MCP tools carry their server's schema here so
	// nested/oneOf/enum fidelity is never lost in translation.
	RawInputSchema json.RawMessage `json:"-"`
}

// Tool is the minimal surface every tool exposes.
type Tool interface {
	// Declaration returns the tool's metadata.
	Declaration() *Declaration
}

// CallableTool is a tool that can be invoked with JSON-encoded arguments.
type CallableTool interface {
	Tool
	// Call executes the tool. jsonArgs is the arguments object as emitted
	// by the model. The result is the tool's value; callers serialize
	// non-string results to JSON when they need text.
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// ParametersJSON renders the declaration's input schema as the
// `parameters` object of an LLM function declaration. RawInputSchema wins
// verbatim when present; otherwise the structured schema is used; a tool
// with no schema at all exports an empty object schema.
func (d *Declaration) ParametersJSON() (map[string]any, error) {
	if len(d.RawInputSchema) > 0 {
		var params map[string]any
		if err := json.Unmarshal(d.RawInputSchema, &params); err != nil {
			return nil, err
		}
		return params, nil
	}
	schema := d.InputSchema
	if schema == nil {
		schema = &Schema{Type: "object", Properties: map[string]*Schema{}}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
