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
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

const (
	bufferListKey = "buffer"
	bufferMetaKey = "buffer_meta"
)

const (
	// defaultTriggerCount extracts once the buffer holds this many messages.
	defaultTriggerCount = 5
	// defaultTriggerInterval extracts after this much time since the last
	// extraction, provided the buffer is non-empty.
	defaultTriggerInterval = 24 * time.Hour
)

// bufferMeta records when the last extraction happened.
type bufferMeta struct {
	LastExtractionTS float64 `json:"last_extraction_ts"`
	LastExtractionAt string  `json:"last_extraction_at"`
}

// ConversationBuffer stages messages that have not yet been distilled into
// long-term memory. Trigger conditions (message count or elapsed time)
// decide when extraction runs.
type ConversationBuffer struct {
	store           store.Store
	ns              store.Namespace
	triggerCount    int
	triggerInterval time.Duration
	now             func() time.Time
}

// NewConversationBuffer creates a buffer over the given store and
// namespace. Non-positive trigger values fall back to the defaults.
func NewConversationBuffer(st store.Store, ns store.Namespace, triggerCount int, triggerInterval time.Duration) *ConversationBuffer {
	if triggerCount <= 0 {
		triggerCount = defaultTriggerCount
	}
	if triggerInterval <= 0 {
		triggerInterval = defaultTriggerInterval
	}
	return &ConversationBuffer{
		store:           st,
		ns:              ns,
		triggerCount:    triggerCount,
		triggerInterval: triggerInterval,
		now:             time.Now,
	}
}

// Add appends a message to the buffer.
func (b *ConversationBuffer) Add(ctx context.Context, role, content string) error {
	raw, err := json.Marshal(NewMessage(role, content))
	if err != nil {
		return err
	}
	return b.store.AppendList(ctx, b.ns, bufferListKey, raw)
}

// ShouldExtract reports whether extraction should run now: the buffer is
// non-empty AND (it reached the trigger count, OR the trigger interval has
// elapsed since the last extraction, OR no extraction was ever recorded).
func (b *ConversationBuffer) ShouldExtract(ctx context.Context) (bool, error) {
	count, err := b.Count(ctx)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	if count >= b.triggerCount {
		return true, nil
	}
	raw, ok, err := b.store.Get(ctx, b.ns, bufferMetaKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	var meta bufferMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return true, nil
	}
	elapsed := b.now().Sub(time.Unix(int64(meta.LastExtractionTS), 0))
	return elapsed >= b.triggerInterval, nil
}

// GetAndClear drains the buffer, records the extraction timestamp, and
// returns the buffered messages. Malformed entries are skipped.
func (b *ConversationBuffer) GetAndClear(ctx context.Context) ([]Message, error) {
	raw, err := b.store.GetList(ctx, b.ns, bufferListKey, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := b.store.ReplaceList(ctx, b.ns, bufferListKey, nil); err != nil {
		return nil, err
	}
	now := b.now()
	meta, err := json.Marshal(bufferMeta{
		LastExtractionTS: float64(now.Unix()),
		LastExtractionAt: now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := b.store.Set(ctx, b.ns, bufferMetaKey, meta); err != nil {
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

// Count returns the current buffer size.
func (b *ConversationBuffer) Count(ctx context.Context) (int, error) {
	raw, err := b.store.GetList(ctx, b.ns, bufferListKey, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Clear drops the buffer without recording an extraction.
func (b *ConversationBuffer) Clear(ctx context.Context) error {
	return b.store.ReplaceList(ctx, b.ns, bufferListKey, nil)
}
