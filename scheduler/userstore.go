//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

// DateLayout is the day format used for once-per-day dedup. The scheduler
// formats days in its configured location, so one store can serve
// schedulers in different zones without ambiguity inside each one.
const DateLayout = "2006-01-02"

// UserStore persists per-user task enablement and the sent-today log.
//
// Implementations must make each mutation atomic: the scheduler may process
// users of one task concurrently.
type UserStore interface {
	// IsEnabled reports whether the user has the task enabled.
	IsEnabled(ctx context.Context, userID, task string) (bool, error)
	// Enable turns the task on for the user.
	Enable(ctx context.Context, userID, task string) error
	// Disable turns the task off for the user.
	Disable(ctx context.Context, userID, task string) error
	// EnabledUsers returns all users with the task enabled, sorted.
	EnabledUsers(ctx context.Context, task string) ([]string, error)
	// RecordSent records that the task messaged the user on day.
	RecordSent(ctx context.Context, userID, task, day string) error
	// AlreadySentToday reports whether the task already messaged the user
	// on day.
	AlreadySentToday(ctx context.Context, userID, task, day string) (bool, error)
}

// InMemoryUserStore keeps enablement and the sent log in process memory.
// Everything is lost on restart; use StoreUserStore for durability.
type InMemoryUserStore struct {
	mu      sync.Mutex
	enabled map[string]map[string]bool // task -> user -> on
	sent    map[string]string          // task + "\x00" + user -> day
}

// NewInMemoryUserStore creates an empty in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		enabled: make(map[string]map[string]bool),
		sent:    make(map[string]string),
	}
}

// IsEnabled implements UserStore.
func (s *InMemoryUserStore) IsEnabled(_ context.Context, userID, task string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[task][userID], nil
}

// Enable implements UserStore.
func (s *InMemoryUserStore) Enable(_ context.Context, userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.enabled[task]
	if users == nil {
		users = make(map[string]bool)
		s.enabled[task] = users
	}
	users[userID] = true
	return nil
}

// Disable implements UserStore.
func (s *InMemoryUserStore) Disable(_ context.Context, userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enabled[task], userID)
	return nil
}

// EnabledUsers implements UserStore.
func (s *InMemoryUserStore) EnabledUsers(_ context.Context, task string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.enabled[task]), nil
}

// RecordSent implements UserStore.
func (s *InMemoryUserStore) RecordSent(_ context.Context, userID, task, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[task+"\x00"+userID] = day
	return nil
}

// AlreadySentToday implements UserStore.
func (s *InMemoryUserStore) AlreadySentToday(_ context.Context, userID, task, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[task+"\x00"+userID] == day, nil
}

// StoreUserStore persists enablement and the sent log through a memory
// store, namespace "scheduler:{task}". The enablement set lives under the
// KV key "users" as a JSON user->bool map; the sent log lives under
// "sent:{user_id}" as a day string. Durability follows the backing store:
// the sqlite store survives restarts, the in-memory one does not.
type StoreUserStore struct {
	mu sync.Mutex
	st store.Store
}

const (
	userStoreAgentID = "scheduler"
	enabledUsersKey  = "users"
	sentKeyPrefix    = "sent:"
)

// NewStoreUserStore creates a user store over st.
func NewStoreUserStore(st store.Store) *StoreUserStore {
	return &StoreUserStore{st: st}
}

func taskNamespace(task string) store.Namespace {
	return store.NewNamespace(userStoreAgentID, task)
}

func (s *StoreUserStore) loadUsers(ctx context.Context, task string) (map[string]bool, error) {
	raw, ok, err := s.st.Get(ctx, taskNamespace(task), enabledUsersKey)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load enabled users: %w", err)
	}
	users := make(map[string]bool)
	if ok {
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, fmt.Errorf("scheduler: decode enabled users: %w", err)
		}
	}
	return users, nil
}

func (s *StoreUserStore) saveUsers(ctx context.Context, task string, users map[string]bool) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("scheduler: encode enabled users: %w", err)
	}
	if err := s.st.Set(ctx, taskNamespace(task), enabledUsersKey, raw); err != nil {
		return fmt.Errorf("scheduler: save enabled users: %w", err)
	}
	return nil
}

// IsEnabled implements UserStore.
func (s *StoreUserStore) IsEnabled(ctx context.Context, userID, task string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadUsers(ctx, task)
	if err != nil {
		return false, err
	}
	return users[userID], nil
}

// Enable implements UserStore.
func (s *StoreUserStore) Enable(ctx context.Context, userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadUsers(ctx, task)
	if err != nil {
		return err
	}
	if users[userID] {
		return nil
	}
	users[userID] = true
	return s.saveUsers(ctx, task, users)
}

// Disable implements UserStore.
func (s *StoreUserStore) Disable(ctx context.Context, userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.loadUsers(ctx, task)
	if err != nil {
		return err
	}
	if !users[userID] {
		return nil
	}
	delete(users, userID)
	return s.saveUsers(ctx, task, users)
}

// EnabledUsers implements UserStore.
func (s *StoreUserStore) EnabledUsers(ctx context.Context, task string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.loadUsers(ctx, task)
	if err != nil {
		return nil, err
	}
	users := make(map[string]bool, len(raw))
	for id, on := range raw {
		if on {
			users[id] = true
		}
	}
	return sortedKeys(users), nil
}

// RecordSent implements UserStore.
func (s *StoreUserStore) RecordSent(ctx context.Context, userID, task, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Set(ctx, taskNamespace(task), sentKeyPrefix+userID, []byte(day)); err != nil {
		return fmt.Errorf("scheduler: record sent: %w", err)
	}
	return nil
}

// AlreadySentToday implements UserStore.
func (s *StoreUserStore) AlreadySentToday(ctx context.Context, userID, task, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok, err := s.st.Get(ctx, taskNamespace(task), sentKeyPrefix+userID)
	if err != nil {
		return false, fmt.Errorf("scheduler: read sent log: %w", err)
	}
	return ok && string(raw) == day, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ UserStore = (*InMemoryUserStore)(nil)
	_ UserStore = (*StoreUserStore)(nil)
)
