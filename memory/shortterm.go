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

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

const shortTermKey = "short_term"

// defaultMaxMessages is the short-term history capacity.
const defaultMaxMessages = 40

// ShortTermMemory manages recent conversation history with automatic
// trimming. The history is what gets replayed to the model as context.
type ShortTermMemory struct {
	store       store.Store
	ns          store.Namespace
	maxMessages int
}

// NewShortTermMemory creates a short-term memory over the given store and
// namespace. A non-positive maxMessages falls back to the default capacity.
func NewShortTermMemory(st store.Store, ns store.Namespace, maxMessages int) *ShortTermMemory {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &ShortTermMemory{store: st, ns: ns, maxMessages: maxMessages}
}

// AddMessage appends a message and trims history over capacity.
func (s *ShortTermMemory) AddMessage(ctx context.Context, role, content string) error {
	raw, err := json.Marshal(NewMessage(role, content))
	if err != nil {
		return err
	}
	if err := s.store.AppendList(ctx, s.ns, shortTermKey, raw); err != nil {
		return err
	}
	_, err = s.store.TrimList(ctx, s.ns, shortTermKey, s.maxMessages)
	return err
}

// History returns recent messages oldest first. A non-positive limit uses
// the configured capacity. Malformed entries are skipped.
func (s *ShortTermMemory) History(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = s.maxMessages
	}
	raw, err := s.store.GetList(ctx, s.ns, shortTermKey, 0, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal(item, &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// HistoryMessages returns recent history converted to model messages,
// ready to prepend to a generation request.
func (s *ShortTermMemory) HistoryMessages(ctx context.Context, limit int) ([]model.Message, error) {
	messages, err := s.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, model.Message{Role: model.Role(msg.Role), Content: msg.Content})
	}
	return out, nil
}

// Count returns the number of stored messages.
func (s *ShortTermMemory) Count(ctx context.Context) (int, error) {
	raw, err := s.store.GetList(ctx, s.ns, shortTermKey, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Clear removes all messages.
func (s *ShortTermMemory) Clear(ctx context.Context) error {
	return s.store.ReplaceList(ctx, s.ns, shortTermKey, nil)
}
