//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package memory

import "sync"

// WorkingMemory holds ephemeral context for the current session: the user's
// current intent, intermediate state, feature counters. Nothing is
// persisted; the data lives only as long as this object.
type WorkingMemory struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewWorkingMemory creates an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{data: make(map[string]any)}
}

// Get returns the value under key, or nil when absent.
func (w *WorkingMemory) Get(key string) any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data[key]
}

// GetString returns the string value under key, or "" when absent or not a
// string.
func (w *WorkingMemory) GetString(key string) string {
	if s, ok := w.Get(key).(string); ok {
		return s
	}
	return ""
}

// Set stores value under key.
func (w *WorkingMemory) Set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[key] = value
}

// Delete removes key.
func (w *WorkingMemory) Delete(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.data, key)
}

// Contains reports whether key is present.
func (w *WorkingMemory) Contains(key string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.data[key]
	return ok
}

// Len returns the number of stored entries.
func (w *WorkingMemory) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.data)
}

// Clear removes all entries.
func (w *WorkingMemory) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = make(map[string]any)
}

// Snapshot returns a shallow copy of all entries.
func (w *WorkingMemory) Snapshot() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]any, len(w.data))
	for k, v := range w.data {
		out[k] = v
	}
	return out
}

// Update merges data into the working memory.
func (w *WorkingMemory) Update(data map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range data {
		w.data[k] = v
	}
}
