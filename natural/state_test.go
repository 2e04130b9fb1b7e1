//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package natural

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store/inmemory"
)

func newTestSession() *memory.Session {
	return memory.NewSession("bot", "user-1", inmemory.New())
}

func TestStateFirstConversation(t *testing.T) {
	ctx := context.Background()
	session := newTestSession()
	tracker := NewStateTracker(time.UTC, 0)

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	st, err := tracker.Track(ctx, session, "你好", now)
	require.NoError(t, err)

	assert.True(t, st.IsFirstConversation)
	assert.Equal(t, -1, st.DaysSinceLast)
	assert.Equal(t, 1, st.TurnIndex)
	assert.Zero(t, st.TotalSessions)
	assert.Contains(t, st.FormatForPrompt(), "第一次对话")
}

func TestStateDaysSinceLast(t *testing.T) {
	ctx := context.Background()
	session := newTestSession()
	tracker := NewStateTracker(time.UTC, 0)

	past := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.TouchSession(ctx, session, past))

	now := past.Add(5 * 24 * time.Hour)
	st, err := tracker.Track(ctx, session, "好久不见", now)
	require.NoError(t, err)

	assert.False(t, st.IsFirstConversation)
	assert.Equal(t, 5, st.DaysSinceLast)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Contains(t, st.FormatForPrompt(), "5天")
}

func TestStateFollowupWindow(t *testing.T) {
	ctx := context.Background()
	session := newTestSession()
	tracker := NewStateTracker(time.UTC, 60*time.Second)

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	st, err := tracker.Track(ctx, session, "第一条", now)
	require.NoError(t, err)
	assert.False(t, st.IsFollowup, "first message has no predecessor")

	st, err = tracker.Track(ctx, session, "追问", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, st.IsFollowup)
	assert.Contains(t, st.FormatForPrompt(), "追问")

	st, err = tracker.Track(ctx, session, "很久之后", now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, st.IsFollowup)
}

func TestStateTurnIndexIncrements(t *testing.T) {
	ctx := context.Background()
	session := newTestSession()
	tracker := NewStateTracker(time.UTC, 0)

	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	for want := 1; want <= 3; want++ {
		st, err := tracker.Track(ctx, session, "msg", now.Add(time.Duration(want)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, want, st.TurnIndex)
	}

	// A new session (fresh working memory) starts over at turn 1.
	other := newTestSession()
	st, err := tracker.Track(ctx, other, "msg", now)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TurnIndex)
}

func TestStateTimeOfDayBands(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{6, TimeMorning},
		{11, TimeMorning},
		{12, TimeAfternoon},
		{17, TimeAfternoon},
		{18, TimeEvening},
		{22, TimeEvening},
		{23, TimeLateNight},
		{2, TimeLateNight},
		{5, TimeLateNight},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyTimeOfDay(tt.hour), "hour %d", tt.hour)
	}
}

func TestStateMsgLengthBands(t *testing.T) {
	ctx := context.Background()
	tracker := NewStateTracker(time.UTC, 0)
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  string
	}{
		{"短", LengthShort},
		{strings.Repeat("中", 20), LengthMedium},
		{strings.Repeat("中", 120), LengthMedium},
		{strings.Repeat("长", 121), LengthLong},
	}
	for _, tt := range tests {
		st, err := tracker.Track(ctx, newTestSession(), tt.input, now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, st.UserMsgLength)
	}
}

func TestStateToKVNamespaced(t *testing.T) {
	ctx := context.Background()
	tracker := NewStateTracker(time.UTC, 0)
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	st, err := tracker.Track(ctx, newTestSession(), "hello", now)
	require.NoError(t, err)
	kv := st.ToKV()
	require.NotEmpty(t, kv)
	for key := range kv {
		assert.True(t, strings.HasPrefix(key, "sdk."), "key %q", key)
	}
	assert.Equal(t, 1, kv["sdk.session.turn_index"])
	assert.Equal(t, true, kv["sdk.conversation.is_first"])
}

func TestTouchSessionAccumulates(t *testing.T) {
	ctx := context.Background()
	session := newTestSession()
	tracker := NewStateTracker(time.UTC, 0)
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	require.NoError(t, tracker.TouchSession(ctx, session, now))
	require.NoError(t, tracker.TouchSession(ctx, session, now.Add(time.Hour)))

	st, err := tracker.Track(ctx, session, "hi", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalSessions)
	assert.False(t, st.IsFirstConversation)
}
