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
	"sort"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

// Session is the high-level facade over all three memory layers for one
// agent/user pair. It handles loading, saving, buffering, and extraction.
type Session struct {
	AgentID string
	UserID  string

	Working   *WorkingMemory
	ShortTerm *ShortTermMemory
	LongTerm  *LongTermMemory
	Buffer    *ConversationBuffer

	store     store.Store
	ns        store.Namespace
	extractor Extractor
}

// sessionOptions collects Session construction knobs.
type sessionOptions struct {
	maxMessages     int
	extractor       Extractor
	triggerCount    int
	triggerInterval time.Duration
	cacheTTL        time.Duration
	cacheTTLSet     bool
	schema          map[string]any
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithMaxMessages sets the short-term history capacity.
func WithMaxMessages(n int) SessionOption {
	return func(o *sessionOptions) { o.maxMessages = n }
}

// WithExtractor installs a memory extractor for ExtractIfNeeded.
func WithExtractor(e Extractor) SessionOption {
	return func(o *sessionOptions) { o.extractor = e }
}

// WithTriggerCount sets the buffer size that triggers extraction.
func WithTriggerCount(n int) SessionOption {
	return func(o *sessionOptions) { o.triggerCount = n }
}

// WithTriggerInterval sets the elapsed time that triggers extraction.
func WithTriggerInterval(d time.Duration) SessionOption {
	return func(o *sessionOptions) { o.triggerInterval = d }
}

// WithLongTermCacheTTL sets the long-term read-cache TTL. Zero disables
// caching.
func WithLongTermCacheTTL(ttl time.Duration) SessionOption {
	return func(o *sessionOptions) {
		o.cacheTTL = ttl
		o.cacheTTLSet = true
	}
}

// WithSessionSchema overrides the long-term default schema.
func WithSessionSchema(schema map[string]any) SessionOption {
	return func(o *sessionOptions) { o.schema = schema }
}

// NewSession creates a session for the given agent/user pair over the
// given store.
func NewSession(agentID, userID string, st store.Store, opts ...SessionOption) *Session {
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	ns := store.NewNamespace(agentID, userID)
	ltOpts := []LongTermOption{}
	if o.cacheTTLSet {
		ltOpts = append(ltOpts, WithCacheTTL(o.cacheTTL))
	}
	if o.schema != nil {
		ltOpts = append(ltOpts, WithDefaultSchema(o.schema))
	}
	return &Session{
		AgentID:   agentID,
		UserID:    userID,
		Working:   NewWorkingMemory(),
		ShortTerm: NewShortTermMemory(st, ns, o.maxMessages),
		LongTerm:  NewLongTermMemory(st, ns, ltOpts...),
		Buffer:    NewConversationBuffer(st, ns, o.triggerCount, o.triggerInterval),
		store:     st,
		ns:        ns,
		extractor: o.extractor,
	}
}

// Namespace returns the session's storage namespace.
func (s *Session) Namespace() store.Namespace {
	return s.ns
}

// Store returns the underlying storage backend.
func (s *Session) Store() store.Store {
	return s.store
}

// SetExtractor installs or replaces the memory extractor.
func (s *Session) SetExtractor(e Extractor) {
	s.extractor = e
}

// Load loads all layers and returns a snapshot.
func (s *Session) Load(ctx context.Context) (*Context, error) {
	history, err := s.ShortTerm.History(ctx, 0)
	if err != nil {
		return nil, err
	}
	longTerm, err := s.LongTerm.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{
		Working:   s.Working.Snapshot(),
		ShortTerm: history,
		LongTerm:  longTerm,
	}, nil
}

// AddMessage records a message in both short-term history and the
// extraction buffer.
func (s *Session) AddMessage(ctx context.Context, role, content string) error {
	if err := s.ShortTerm.AddMessage(ctx, role, content); err != nil {
		return err
	}
	return s.Buffer.Add(ctx, role, content)
}

// ExtractIfNeeded runs extraction when the buffer triggers say so. It
// returns the extracted delta, or nil when extraction did not run. The
// delta has already been merged into long-term memory.
func (s *Session) ExtractIfNeeded(ctx context.Context) (map[string]any, error) {
	if s.extractor == nil {
		return nil, nil
	}
	should, err := s.Buffer.ShouldExtract(ctx)
	if err != nil {
		return nil, err
	}
	if !should {
		return nil, nil
	}
	conversations, err := s.Buffer.GetAndClear(ctx)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, nil
	}
	current, err := s.LongTerm.Get(ctx)
	if err != nil {
		return nil, err
	}
	extracted, err := s.extractor.Extract(ctx, conversations, current)
	if err != nil {
		return nil, err
	}
	if len(extracted) > 0 {
		if _, err := s.LongTerm.Update(ctx, extracted); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(extracted))
		for k := range extracted {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		log.Infof("Memory extracted | ns=%s | keys=%v", s.ns.String(), keys)
	}
	return extracted, nil
}

// FormatForPrompt renders the cached memory state for system prompt
// injection. Call Load first to populate the cache. An empty template uses
// the default.
func (s *Session) FormatForPrompt(template string) string {
	return FormatForPrompt(s.LongTerm.Cached(), s.Working.Snapshot(), template)
}

// SaveLongTerm explicitly persists the current long-term memory.
func (s *Session) SaveLongTerm(ctx context.Context) error {
	data, err := s.LongTerm.Get(ctx)
	if err != nil {
		return err
	}
	return s.LongTerm.Save(ctx, data)
}

// UpdateLongTerm deep-merges updates into long-term memory.
func (s *Session) UpdateLongTerm(ctx context.Context, updates map[string]any) (map[string]any, error) {
	return s.LongTerm.Update(ctx, updates)
}

// ClearHistory clears short-term history only.
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.ShortTerm.Clear(ctx)
}

// ClearBuffer clears the extraction buffer only.
func (s *Session) ClearBuffer(ctx context.Context) error {
	return s.Buffer.Clear(ctx)
}

// ClearAll clears every layer: working, short-term, long-term, buffer.
func (s *Session) ClearAll(ctx context.Context) error {
	s.Working.Clear()
	if err := s.ShortTerm.Clear(ctx); err != nil {
		return err
	}
	if err := s.LongTerm.Delete(ctx); err != nil {
		return err
	}
	return s.Buffer.Clear(ctx)
}
