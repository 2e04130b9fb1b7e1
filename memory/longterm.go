//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

const longTermKey = "long_term"

// defaultCacheTTL bounds how long a loaded profile is served from cache.
const defaultCacheTTL = 300 * time.Second

// LongTermMemory is the persistent user profile: structured JSON that
// survives sessions. Updates deep-merge into the stored document so
// extracted increments never erase existing fields. A TTL read cache
// absorbs repeated loads within one session.
type LongTermMemory struct {
	store    store.Store
	ns       store.Namespace
	schema   map[string]any
	cacheTTL time.Duration

	mu      sync.Mutex
	cache   map[string]any
	cacheAt time.Time
}

// LongTermOption configures a LongTermMemory.
type LongTermOption func(*LongTermMemory)

// WithDefaultSchema overrides the initial template for new users.
func WithDefaultSchema(schema map[string]any) LongTermOption {
	return func(l *LongTermMemory) {
		l.schema = schema
	}
}

// WithCacheTTL sets the read-cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) LongTermOption {
	return func(l *LongTermMemory) {
		l.cacheTTL = ttl
	}
}

// NewLongTermMemory creates a long-term memory over the given store and
// namespace.
func NewLongTermMemory(st store.Store, ns store.Namespace, opts ...LongTermOption) *LongTermMemory {
	l := &LongTermMemory{
		store:    st,
		ns:       ns,
		schema:   DefaultSchema(),
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get loads the long-term memory, serving from cache while fresh. New
// users receive a copy of the default schema with meta.created_at stamped.
func (l *LongTermMemory) Get(ctx context.Context) (map[string]any, error) {
	l.mu.Lock()
	if l.cache != nil && l.cacheTTL > 0 && time.Since(l.cacheAt) < l.cacheTTL {
		data := l.cache
		l.mu.Unlock()
		return data, nil
	}
	l.mu.Unlock()

	raw, ok, err := l.store.Get(ctx, l.ns, longTermKey)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if ok {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = deepCopyMap(l.schema)
		}
	} else {
		data = deepCopyMap(l.schema)
		if meta, ok := data["meta"].(map[string]any); ok {
			meta["created_at"] = time.Now().Format(time.RFC3339)
		}
	}

	l.mu.Lock()
	l.cache = data
	l.cacheAt = time.Now()
	l.mu.Unlock()
	return data, nil
}

// Save overwrites the entire long-term memory, stamping meta.updated_at.
func (l *LongTermMemory) Save(ctx context.Context, data map[string]any) error {
	if meta, ok := data["meta"].(map[string]any); ok {
		meta["updated_at"] = time.Now().Format(time.RFC3339)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, l.ns, longTermKey, raw); err != nil {
		return err
	}
	l.mu.Lock()
	l.cache = data
	l.cacheAt = time.Now()
	l.mu.Unlock()
	return nil
}

// Update deep-merges updates into the stored memory, bumps the
// conversation counter, saves, and returns the merged result.
func (l *LongTermMemory) Update(ctx context.Context, updates map[string]any) (map[string]any, error) {
	current, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	merged := deepMerge(current, updates)
	if meta, ok := merged["meta"].(map[string]any); ok {
		meta["conversation_count"] = asInt(meta["conversation_count"]) + 1
		meta["updated_at"] = time.Now().Format(time.RFC3339)
	}
	if err := l.Save(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes the long-term memory and drops the cache.
func (l *LongTermMemory) Delete(ctx context.Context) error {
	if err := l.store.Delete(ctx, l.ns, longTermKey); err != nil {
		return err
	}
	l.InvalidateCache()
	return nil
}

// InvalidateCache forces the next Get to reload from the store.
func (l *LongTermMemory) InvalidateCache() {
	l.mu.Lock()
	l.cache = nil
	l.cacheAt = time.Time{}
	l.mu.Unlock()
}

// Cached returns the currently cached profile, or nil when nothing is
// loaded. Callers use it for prompt formatting without a store round trip.
func (l *LongTermMemory) Cached() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache
}
