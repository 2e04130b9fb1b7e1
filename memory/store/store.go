//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package store defines the key-value and list storage abstraction that all
// memory layers are built on. Values are opaque JSON-encoded bytes; the store
// never inspects them.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAgentIDRequired is the error for agent id required.
	ErrAgentIDRequired = errors.New("agentID is required")
	// ErrUserIDRequired is the error for user id required.
	ErrUserIDRequired = errors.New("userID is required")
)

// Namespace scopes all keys to one agent/user pair.
type Namespace struct {
	AgentID string
	UserID  string
}

// NewNamespace creates a namespace for the given agent and user.
func NewNamespace(agentID, userID string) Namespace {
	return Namespace{AgentID: agentID, UserID: userID}
}

// String returns the canonical namespace form "{agent_id}:{user_id}".
func (n Namespace) String() string {
	return fmt.Sprintf("%s:%s", n.AgentID, n.UserID)
}

// Key returns the fully qualified key "{agent_id}:{user_id}:{key}".
func (n Namespace) Key(key string) string {
	return fmt.Sprintf("%s:%s:%s", n.AgentID, n.UserID, key)
}

// Validate reports whether both namespace components are present.
func (n Namespace) Validate() error {
	if n.AgentID == "" {
		return ErrAgentIDRequired
	}
	if n.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}

// Store is the persistence contract shared by all memory layers.
//
// Implementations must isolate namespaces completely: operations in one
// namespace are never visible through another. A missing KV key is reported
// as ok=false with a nil error; deleting a missing key is a no-op.
type Store interface {
	// Get returns the value stored under key, or ok=false when absent.
	Get(ctx context.Context, ns Namespace, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, ns Namespace, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error

	// AppendList appends item to the list stored under key, creating the
	// list when absent.
	AppendList(ctx context.Context, ns Namespace, key string, item []byte) error
	// GetList returns list items in insertion order, skipping offset items
	// from the start. A non-positive limit returns everything after offset.
	GetList(ctx context.Context, ns Namespace, key string, offset, limit int) ([][]byte, error)
	// ReplaceList replaces the whole list with items.
	ReplaceList(ctx context.Context, ns Namespace, key string, items [][]byte) error
	// TrimList keeps the most recent max items and returns the number of
	// items removed. A non-positive max clears the list.
	TrimList(ctx context.Context, ns Namespace, key string, max int) (removed int, err error)

	// ListKeys returns the union of KV and list keys in the namespace,
	// sorted, without the namespace prefix.
	ListKeys(ctx context.Context, ns Namespace) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
