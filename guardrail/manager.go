//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package guardrail

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/log"
)

// Option configures a Manager.
type Option func(*Manager)

// WithParallel controls the execution mode. Parallel (the default) runs
// every guard concurrently and reports the first failure in registration
// order; sequential runs guards in order and stops at the first failure.
func WithParallel(parallel bool) Option {
	return func(m *Manager) {
		m.parallel = parallel
	}
}

// Manager holds the ordered input and output guard lists and runs them.
type Manager struct {
	mu           sync.RWMutex
	inputGuards  []*Guard
	outputGuards []*Guard
	parallel     bool
}

// NewManager creates a guard manager. Guards run in parallel unless
// WithParallel(false) is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{parallel: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddInput appends a guard to the input list.
func (m *Manager) AddInput(g *Guard) {
	if g == nil || g.Func == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputGuards = append(m.inputGuards, g)
}

// AddOutput appends a guard to the output list.
func (m *Manager) AddOutput(g *Guard) {
	if g == nil || g.Func == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputGuards = append(m.outputGuards, g)
}

// InputCount returns the number of registered input guards.
func (m *Manager) InputCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inputGuards)
}

// OutputCount returns the number of registered output guards.
func (m *Manager) OutputCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outputGuards)
}

// CheckInput runs the input guards. On failure it returns the failing
// Result together with an *InputTriggeredError tripwire.
func (m *Manager) CheckInput(ctx context.Context, gc *Context) (*Result, error) {
	result := m.CheckInputSafe(ctx, gc)
	if !result.Passed {
		return result, &InputTriggeredError{
			GuardrailName: result.GuardrailName,
			Reason:        result.Reason,
		}
	}
	return result, nil
}

// CheckOutput runs the output guards. On failure it returns the failing
// Result together with an *OutputTriggeredError tripwire.
func (m *Manager) CheckOutput(ctx context.Context, gc *Context) (*Result, error) {
	result := m.CheckOutputSafe(ctx, gc)
	if !result.Passed {
		return result, &OutputTriggeredError{
			GuardrailName: result.GuardrailName,
			Reason:        result.Reason,
		}
	}
	return result, nil
}

// CheckInputSafe runs the input guards and reports the outcome without
// raising a tripwire.
func (m *Manager) CheckInputSafe(ctx context.Context, gc *Context) *Result {
	m.mu.RLock()
	guards := make([]*Guard, len(m.inputGuards))
	copy(guards, m.inputGuards)
	m.mu.RUnlock()
	return m.runGuards(ctx, guards, gc)
}

// CheckOutputSafe runs the output guards and reports the outcome without
// raising a tripwire.
func (m *Manager) CheckOutputSafe(ctx context.Context, gc *Context) *Result {
	m.mu.RLock()
	guards := make([]*Guard, len(m.outputGuards))
	copy(guards, m.outputGuards)
	m.mu.RUnlock()
	return m.runGuards(ctx, guards, gc)
}

func (m *Manager) runGuards(ctx context.Context, guards []*Guard, gc *Context) *Result {
	if len(guards) == 0 {
		return &Result{Passed: true}
	}
	if gc == nil {
		gc = &Context{}
	}
	if m.parallel {
		return m.runParallel(ctx, guards, gc)
	}
	return m.runSequential(ctx, guards, gc)
}

// runParallel runs every guard concurrently, then scans the results in
// registration order so the reported failure is deterministic.
func (m *Manager) runParallel(ctx context.Context, guards []*Guard, gc *Context) *Result {
	results := make([]*Result, len(guards))
	var wg sync.WaitGroup
	for i, g := range guards {
		wg.Add(1)
		go func(i int, g *Guard) {
			defer wg.Done()
			results[i] = m.runOne(ctx, g, gc)
		}(i, g)
	}
	wg.Wait()

	for _, r := range results {
		if !r.Passed {
			return r
		}
	}
	return &Result{Passed: true}
}

func (m *Manager) runSequential(ctx context.Context, guards []*Guard, gc *Context) *Result {
	for _, g := range guards {
		if r := m.runOne(ctx, g, gc); !r.Passed {
			return r
		}
	}
	return &Result{Passed: true}
}

// runOne executes a single guard and stamps its name on the result.
// Errors and panics become failed results so one broken guard cannot
// take down the whole check.
func (m *Manager) runOne(ctx context.Context, g *Guard, gc *Context) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Guardrail %q panicked: %v", g.Name, r)
			result = &Result{
				Passed:        false,
				Reason:        fmt.Sprintf("Guardrail error: %v", r),
				GuardrailName: g.Name,
			}
		}
	}()

	r, err := g.Func(ctx, gc)
	if err != nil {
		return &Result{
			Passed:        false,
			Reason:        fmt.Sprintf("Guardrail error: %v", err),
			GuardrailName: g.Name,
		}
	}
	if r == nil {
		r = &Result{Passed: true}
	}
	r.GuardrailName = g.Name
	return r
}
