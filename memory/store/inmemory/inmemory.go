//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory store implementation suitable for
// tests and single-process deployments.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps all namespaces in process memory. A single exclusive lock
// serializes every operation, matching the durable store's write semantics.
type Store struct {
	mu    sync.Mutex
	kv    map[string]map[string][]byte
	lists map[string]map[string][][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		kv:    make(map[string]map[string][]byte),
		lists: make(map[string]map[string][][]byte),
	}
}

// Get returns the value stored under key, or ok=false when absent.
func (s *Store) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, bool, error) {
	if err := ns.Validate(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.kv[ns.String()]
	if !ok {
		return nil, false, nil
	}
	value, ok := bucket[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, ns store.Namespace, key string, value []byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.kv[ns.String()]
	if !ok {
		bucket = make(map[string][]byte)
		s.kv[ns.String()] = bucket
	}
	bucket[key] = cloneBytes(value)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, ns store.Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.kv[ns.String()]; ok {
		delete(bucket, key)
	}
	return nil
}

// AppendList appends item to the list stored under key.
func (s *Store) AppendList(ctx context.Context, ns store.Namespace, key string, item []byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.lists[ns.String()]
	if !ok {
		bucket = make(map[string][][]byte)
		s.lists[ns.String()] = bucket
	}
	bucket[key] = append(bucket[key], cloneBytes(item))
	return nil
}

// GetList returns list items in insertion order, honoring offset and limit.
func (s *Store) GetList(ctx context.Context, ns store.Namespace, key string, offset, limit int) ([][]byte, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.lists[ns.String()]
	if !ok {
		return nil, nil
	}
	items := bucket[key]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, cloneBytes(item))
	}
	return out, nil
}

// ReplaceList replaces the whole list with items.
func (s *Store) ReplaceList(ctx context.Context, ns store.Namespace, key string, items [][]byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.lists[ns.String()]
	if !ok {
		bucket = make(map[string][][]byte)
		s.lists[ns.String()] = bucket
	}
	replaced := make([][]byte, 0, len(items))
	for _, item := range items {
		replaced = append(replaced, cloneBytes(item))
	}
	bucket[key] = replaced
	return nil
}

// TrimList keeps the most recent max items and returns the number removed.
func (s *Store) TrimList(ctx context.Context, ns store.Namespace, key string, max int) (int, error) {
	if err := ns.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.lists[ns.String()]
	if !ok {
		return 0, nil
	}
	items := bucket[key]
	if max < 0 {
		max = 0
	}
	if len(items) <= max {
		return 0, nil
	}
	removed := len(items) - max
	bucket[key] = items[removed:]
	return removed, nil
}

// ListKeys returns the union of KV and list keys in the namespace, sorted.
func (s *Store) ListKeys(ctx context.Context, ns store.Namespace) ([]string, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for key := range s.kv[ns.String()] {
		seen[key] = struct{}{}
	}
	for key := range s.lists[ns.String()] {
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases nothing for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
