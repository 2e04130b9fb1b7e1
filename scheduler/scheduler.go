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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

const (
	defaultInterval = 60 * time.Second
	defaultPoolSize = 8
)

// Scheduler runs registered tasks on their intervals and pushes the
// resulting messages through the injected sender. Task errors are logged
// and never stop the loop.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pool    *ants.Pool

	sender     Sender
	users      UserStore
	scoreStore store.Store
	interval   time.Duration
	poolSize   int
	loc        *time.Location
	state      *State
	now        func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSender sets the message delivery callback.
func WithSender(s Sender) Option {
	return func(sc *Scheduler) { sc.sender = s }
}

// WithSendFunc sets the message delivery callback from a plain function.
func WithSendFunc(fn SendFunc) Option {
	return func(sc *Scheduler) { sc.sender = fn }
}

// WithUserStore sets the enablement/dedup store. Default in-memory.
func WithUserStore(us UserStore) Option {
	return func(sc *Scheduler) { sc.users = us }
}

// WithInterval sets the default tick interval for tasks that do not carry
// their own. Default 60s.
func WithInterval(d time.Duration) Option {
	return func(sc *Scheduler) {
		if d > 0 {
			sc.interval = d
		}
	}
}

// WithPoolSize sets the per-tick user fan-out pool size. Default 8.
func WithPoolSize(n int) Option {
	return func(sc *Scheduler) {
		if n > 0 {
			sc.poolSize = n
		}
	}
}

// WithLocation sets the time zone used for day-boundary dedup.
// Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(sc *Scheduler) {
		if loc != nil {
			sc.loc = loc
		}
	}
}

// WithFeedbackStore enables proactive-score gating: users whose score has
// dropped below MinProactiveScore are skipped.
func WithFeedbackStore(st store.Store) Option {
	return func(sc *Scheduler) { sc.scoreStore = st }
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    make(map[string]*Task),
		users:    NewInMemoryUserStore(),
		interval: defaultInterval,
		poolSize: defaultPoolSize,
		loc:      time.Local,
		state:    NewState(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the scratch state shared with check and build functions.
func (s *Scheduler) State() *State {
	return s.state
}

// AddTask registers a task. Re-registering a name replaces the previous
// task with a warning. When the scheduler is already running the task
// starts ticking immediately.
func (s *Scheduler) AddTask(t *Task) error {
	if err := t.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.Name]; exists {
		log.Warnf("scheduler: task %q already registered, replacing", t.Name)
		s.tasks[t.Name] = t
		return nil
	}
	s.tasks[t.Name] = t
	if s.running {
		s.spawnTaskLocked(t.Name)
	}
	return nil
}

// RemoveTask unregisters a task. Its loop exits on the next tick.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, name)
}

// TaskNames returns the registered task names, sorted.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskInfo is the read-only view of a registered task.
type TaskInfo struct {
	// Name is the task name.
	Name string `json:"name"`
	// Interval is the effective tick interval.
	Interval time.Duration `json:"interval"`
	// Running reports whether the task loop is ticking.
	Running bool `json:"running"`
}

// Tasks returns a snapshot of the registered tasks, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]TaskInfo, 0, len(s.tasks))
	for name, t := range s.tasks {
		interval := s.interval
		if t.Interval > 0 {
			interval = t.Interval
		}
		infos = append(infos, TaskInfo{Name: name, Interval: interval, Running: s.running})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Running reports whether the scheduler has been started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EnableUser enables the given tasks (all registered tasks when empty)
// for the user.
func (s *Scheduler) EnableUser(ctx context.Context, userID string, tasks ...string) error {
	if len(tasks) == 0 {
		tasks = s.TaskNames()
	}
	for _, name := range tasks {
		if err := s.users.Enable(ctx, userID, name); err != nil {
			return err
		}
	}
	return nil
}

// DisableUser disables the given tasks (all registered tasks when empty)
// for the user.
func (s *Scheduler) DisableUser(ctx context.Context, userID string, tasks ...string) error {
	if len(tasks) == 0 {
		tasks = s.TaskNames()
	}
	for _, name := range tasks {
		if err := s.users.Disable(ctx, userID, name); err != nil {
			return err
		}
	}
	return nil
}

// IsUserEnabled reports whether the user has the task enabled. With an
// empty task name it reports whether any registered task is enabled.
func (s *Scheduler) IsUserEnabled(ctx context.Context, userID, task string) (bool, error) {
	if task != "" {
		return s.users.IsEnabled(ctx, userID, task)
	}
	for _, name := range s.TaskNames() {
		on, err := s.users.IsEnabled(ctx, userID, name)
		if err != nil {
			return false, err
		}
		if on {
			return true, nil
		}
	}
	return false, nil
}

// Start launches one loop per registered task. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return fmt.Errorf("scheduler: create fan-out pool: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.pool = pool
	s.cancel = cancel
	s.runCtx = runCtx
	s.running = true
	for name := range s.tasks {
		s.spawnTaskLocked(name)
	}
	log.Infof("scheduler started | tasks=%d | interval=%s", len(s.tasks), s.interval)
	return nil
}

// Stop cancels all task loops and waits for them and the pool to drain.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	pool := s.pool
	s.cancel = nil
	s.pool = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	pool.Release()
	log.Info("scheduler stopped")
}

// spawnTaskLocked starts the tick loop for one task. Caller holds s.mu.
func (s *Scheduler) spawnTaskLocked(name string) {
	ctx := s.runCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			s.mu.Lock()
			task, ok := s.tasks[name]
			pool := s.pool
			s.mu.Unlock()
			if !ok || pool == nil {
				return
			}
			s.runTask(ctx, task, pool)

			interval := task.Interval
			if interval <= 0 {
				interval = s.interval
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
}

// runTask executes one tick of one task: check, then fan out per user.
func (s *Scheduler) runTask(ctx context.Context, task *Task, pool *ants.Pool) {
	now := s.now().In(s.loc)
	tc := &TickContext{
		Now:   now,
		Today: now.Format(DateLayout),
		State: s.state,
	}
	userIDs, err := task.Check(ctx, tc)
	if err != nil {
		log.Errorf("scheduler: task %q check failed: %v", task.Name, err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, userID := range userIDs {
		userID := userID
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			s.processUser(ctx, task, tc, userID)
		}); err != nil {
			wg.Done()
			log.Errorf("scheduler: task %q submit user %s: %v", task.Name, userID, err)
		}
	}
	wg.Wait()
}

// processUser runs the per-user pipeline: enablement, score gate, daily
// dedup, build, send, record.
func (s *Scheduler) processUser(ctx context.Context, task *Task, tc *TickContext, userID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("scheduler: task %q user %s panicked: %v", task.Name, userID, r)
		}
	}()

	enabled, err := s.users.IsEnabled(ctx, userID, task.Name)
	if err != nil {
		log.Errorf("scheduler: task %q enablement check for %s: %v", task.Name, userID, err)
		return
	}
	if !enabled {
		return
	}
	if s.scoreStore != nil {
		score, err := ProactiveScore(ctx, s.scoreStore, userID)
		if err != nil {
			log.Errorf("scheduler: task %q score for %s: %v", task.Name, userID, err)
		} else if score < MinProactiveScore {
			log.Debugf("scheduler: task %q skipping %s, proactive score %.2f", task.Name, userID, score)
			return
		}
	}
	sent, err := s.users.AlreadySentToday(ctx, userID, task.Name, tc.Today)
	if err != nil {
		log.Errorf("scheduler: task %q sent-today check for %s: %v", task.Name, userID, err)
		return
	}
	if sent {
		return
	}

	msg, err := task.Build(ctx, tc, userID)
	if err != nil {
		log.Errorf("scheduler: task %q build for %s: %v", task.Name, userID, err)
		return
	}
	if msg == nil || msg.Text == "" {
		return
	}
	if s.sender == nil {
		log.Warnf("scheduler: no sender configured, dropping message for %s", userID)
		return
	}
	if err := s.sender.Send(ctx, userID, msg); err != nil {
		// Not recorded as sent; the next tick may retry.
		log.Errorf("scheduler: send failed | task=%s | user=%s | error=%v", task.Name, userID, err)
		return
	}
	if err := s.users.RecordSent(ctx, userID, task.Name, tc.Today); err != nil {
		log.Errorf("scheduler: record sent | task=%s | user=%s | error=%v", task.Name, userID, err)
		return
	}
	log.Infof("Proactive message sent | task=%s | user=%s", task.Name, userID)
}
