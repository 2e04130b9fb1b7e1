//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Param declares one named argument of a dynamically-defined tool.
type Param struct {
	// Name is the argument name.
	Name string
	// Type is the JSON-Schema type; empty defaults to "string".
	Type string
	// Description documents the argument for the model.
	Description string
	// Required marks the argument mandatory at dispatch.
	Required bool
	// Default is filled in when an optional argument is omitted.
	Default any
	// Enum restricts the argument to a fixed value set.
	Enum []any
}

// HandlerFunc executes a dynamically-defined tool. Arguments arrive as the
// decoded JSON object, with declared defaults already filled in. Invocation
// metadata is available via FromContext.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Definition is a runtime-declared tool: explicit parameter list plus a
// handler. Imported MCP tools and handoff tools are expressed this way;
// typed Go functions use the function package instead.
type Definition struct {
	// Name is the tool name.
	Name string
	// Description tells the model when to call the tool.
	Description string
	// Params declares the arguments.
	Params []Param
	// Handler runs the tool.
	Handler HandlerFunc
	// RawInputSchema, when set, is exported verbatim to the model instead
	// of a schema derived from Params.
	RawInputSchema json.RawMessage
}

var _ CallableTool = (*Definition)(nil)

// Declaration implements Tool.
func (d *Definition) Declaration() *Declaration {
	properties := make(map[string]*Schema, len(d.Params))
	var required []string
	for _, p := range d.Params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		properties[p.Name] = &Schema{
			Type:        typ,
			Description: p.Description,
			Default:     p.Default,
			Enum:        p.Enum,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &Declaration{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: &Schema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
		RawInputSchema: d.RawInputSchema,
	}
}

// Call implements CallableTool. It decodes the arguments object and
// delegates to the handler.
func (d *Definition) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	if d.Handler == nil {
		return nil, fmt.Errorf("tool %q has no handler", d.Name)
	}
	args := map[string]any{}
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &args); err != nil {
			return nil, fmt.Errorf("tool %q arguments: %w", d.Name, err)
		}
	}
	return d.Handler(ctx, args)
}

// Validate reports whether the definition is usable.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	return nil
}
