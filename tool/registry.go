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
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

var (
	// ErrToolNotFound is returned when dispatching to an unregistered name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrMissingParameter is returned when a required argument is absent.
	ErrMissingParameter = errors.New("missing required argument")
)

// Registry holds named tools and dispatches model tool calls to them.
// Reads are concurrent; mutations are serialized. Registration is not
// expected during dispatch but is safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]CallableTool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]CallableTool)}
}

// Register adds t under its declared name. Re-registering a name replaces
// the previous tool with a warning, keeping its original position.
func (r *Registry) Register(t CallableTool) {
	name := t.Declaration().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		log.Warnf("Tool %q already registered, overwriting", name)
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Remove deletes name from the registry. Removing an unknown name is a
// no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (CallableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute dispatches a tool call. Missing optional arguments pick up their
// declared defaults; a missing required argument fails before the handler
// runs. A panicking handler is recovered into an error so one bad tool
// never kills the loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result any, err error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	decl := t.Declaration()
	if schema := decl.InputSchema; schema != nil {
		required := make(map[string]bool, len(schema.Required))
		for _, reqName := range schema.Required {
			required[reqName] = true
		}
		for propName, prop := range schema.Properties {
			if _, present := args[propName]; present {
				continue
			}
			if required[propName] {
				return nil, fmt.Errorf("tool %q %w %q", name, ErrMissingParameter, propName)
			}
			if prop != nil && prop.Default != nil {
				args[propName] = prop.Default
			}
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("tool %q arguments: %w", name, err)
	}
	if _, ok := FromContext(ctx); !ok {
		ctx = NewContext(ctx, &Context{ToolName: name})
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %q panicked: %v", name, rec)
		}
	}()
	return t.Call(ctx, raw)
}

// Specs exports all tools as model function declarations, in registration
// order. Tools whose schema cannot be rendered are skipped with an error
// log.
func (r *Registry) Specs() []model.Tool {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	tools := make(map[string]CallableTool, len(r.tools))
	for name, t := range r.tools {
		tools[name] = t
	}
	r.mu.RUnlock()

	specs := make([]model.Tool, 0, len(names))
	for _, name := range names {
		decl := tools[name].Declaration()
		params, err := decl.ParametersJSON()
		if err != nil {
			log.Errorf("Tool %q schema export failed: %v", name, err)
			continue
		}
		specs = append(specs, model.Tool{
			Name:        decl.Name,
			Description: decl.Description,
			Parameters:  params,
		})
	}
	return specs
}
