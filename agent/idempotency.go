//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultIdempotencyTTL is how long completed results are replayable.
const defaultIdempotencyTTL = 24 * time.Hour

type idempotencyEntry struct {
	result    *HandoffResult
	expiresAt time.Time
}

// IdempotencyCache gives handoffs at-most-once semantics per request id:
// a fresh cached result is replayed with CacheHit set, and concurrent
// same-id callers share a single execution.
type IdempotencyCache struct {
	ttl     time.Duration
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

// NewIdempotencyCache creates a cache. A non-positive ttl uses the
// default of 24 hours.
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyCache{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
	}
}

// Do returns the cached result for key when fresh; otherwise it runs fn,
// collapsing concurrent same-key callers into one execution. Only
// successful results are stored. Every caller that did not execute fn
// itself sees CacheHit=true on its copy. An empty key bypasses the cache.
func (c *IdempotencyCache) Do(key string, fn func() (*HandoffResult, error)) (*HandoffResult, error) {
	if key == "" {
		return fn()
	}
	if cached, ok := c.lookup(key); ok {
		return cached, nil
	}

	executed := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		executed = true
		result, err := fn()
		if err == nil && result != nil && result.Status == StatusSuccess {
			c.store(key, result)
		}
		return result, err
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.(*HandoffResult)
	if result == nil {
		return nil, nil
	}
	if !executed {
		// This caller joined another caller's execution.
		shared := cloneResult(result)
		shared.CacheHit = true
		return shared, nil
	}
	return result, nil
}

// cloneResult deep-copies a result so cached values and replayed copies
// never share Usage, Error, or ReturnContext with a caller that may
// mutate them.
func cloneResult(r *HandoffResult) *HandoffResult {
	out := *r
	if r.Usage != nil {
		usage := *r.Usage
		out.Usage = &usage
	}
	if r.Error != nil {
		herr := *r.Error
		out.Error = &herr
	}
	if r.ReturnContext != nil {
		rc := *r.ReturnContext
		rc.Messages = append([]HandoffMessage(nil), r.ReturnContext.Messages...)
		rc.RedactionReport = append([]string(nil), r.ReturnContext.RedactionReport...)
		rc.Attachments = append([]Attachment(nil), r.ReturnContext.Attachments...)
		if r.ReturnContext.Metadata != nil {
			rc.Metadata = make(map[string]string, len(r.ReturnContext.Metadata))
			for k, v := range r.ReturnContext.Metadata {
				rc.Metadata[k] = v
			}
		}
		out.ReturnContext = &rc
	}
	return &out
}

// Len returns the number of live cached results.
func (c *IdempotencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *IdempotencyCache) lookup(key string) (*HandoffResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	out := cloneResult(e.result)
	out.CacheHit = true
	return out, true
}

// store saves a copy of result and sweeps expired entries on the way.
func (c *IdempotencyCache) store(key string, result *HandoffResult) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = idempotencyEntry{
		result:    cloneResult(result),
		expiresAt: now.Add(c.ttl),
	}
}
