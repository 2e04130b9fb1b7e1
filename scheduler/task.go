//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package scheduler runs proactive-message tasks on a timer: each task
// periodically selects users, builds a message per user and hands it to an
// injected sender, with per-user enablement and once-per-day dedup.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Task errors.
var (
	// ErrTaskNameRequired is returned when a task has no name.
	ErrTaskNameRequired = errors.New("scheduler: task name is required")
	// ErrCheckRequired is returned when a task has no check function.
	ErrCheckRequired = errors.New("scheduler: task check function is required")
	// ErrBuildRequired is returned when a task has no build function.
	ErrBuildRequired = errors.New("scheduler: task build function is required")
)

// Message is one proactive message bound for a user.
type Message struct {
	// Text is the message body handed to the sender.
	Text string `json:"text"`
	// Metadata carries optional task-specific fields for the sender.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TickContext is passed to check and build functions on every tick.
type TickContext struct {
	// Now is the tick time in the scheduler's location.
	Now time.Time
	// Today is Now's date formatted "2006-01-02".
	Today string
	// State is scratch space shared by all tasks for the scheduler's
	// lifetime.
	State *State
}

// CheckFunc decides which users the task should message on this tick.
type CheckFunc func(ctx context.Context, tc *TickContext) ([]string, error)

// BuildFunc produces the message for one user. Returning a nil message
// skips the user without recording a send.
type BuildFunc func(ctx context.Context, tc *TickContext, userID string) (*Message, error)

// Task is one registered proactive trigger.
type Task struct {
	// Name uniquely identifies the task.
	Name string
	// Interval overrides the scheduler's default tick interval when > 0.
	Interval time.Duration
	// Check selects the users to message.
	Check CheckFunc
	// Build renders the message for one selected user.
	Build BuildFunc
}

func (t *Task) validate() error {
	if t == nil || t.Name == "" {
		return ErrTaskNameRequired
	}
	if t.Check == nil {
		return ErrCheckRequired
	}
	if t.Build == nil {
		return ErrBuildRequired
	}
	return nil
}

// Sender delivers proactive messages to users. Implemented by the chat
// platform adapter.
type Sender interface {
	Send(ctx context.Context, userID string, msg *Message) error
}

// SendFunc adapts a plain function to the Sender interface.
type SendFunc func(ctx context.Context, userID string, msg *Message) error

// Send implements Sender.
func (f SendFunc) Send(ctx context.Context, userID string, msg *Message) error {
	return f(ctx, userID, msg)
}

// State is a concurrency-safe scratch map shared across tasks and ticks.
type State struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewState creates an empty state map.
func NewState() *State {
	return &State{m: make(map[string]any)}
}

// Get returns the value under key, or nil when absent.
func (s *State) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key]
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
