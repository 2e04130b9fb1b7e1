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
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-botagent-go/memory"
)

// Working-memory keys owned by the state tracker. The sdk. prefix keeps
// them apart from user data in the same working memory.
const (
	metaKey         = "sdk.conversation_meta"
	turnIndexKey    = "sdk.session.turn_index"
	lastMessageKey  = "sdk.session.last_msg_at"
	sessionStartKey = "sdk.session.start_at"
)

// Time-of-day bands.
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeLateNight = "late_night"
)

// Message-length bands.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// State is the derived snapshot of where the conversation stands.
type State struct {
	// TurnIndex is the 1-based turn number within this session.
	TurnIndex int
	// IsFollowup reports whether the user replied within the followup
	// window of their previous message.
	IsFollowup bool
	// IsFirstConversation reports whether the user has never talked to
	// this agent before.
	IsFirstConversation bool
	// SessionDuration is the time since the session's first message.
	SessionDuration time.Duration
	// DaysSinceLast is full days since the previous conversation,
	// -1 for the first one.
	DaysSinceLast int
	// TotalSessions counts past conversations.
	TotalSessions int
	// TimeOfDay is the local time band.
	TimeOfDay string
	// UserMsgLength is the message length band.
	UserMsgLength string
	// LocalTime is the tick time in the tracker's zone, RFC 3339.
	LocalTime string
}

// FormatForPrompt renders the state as a system-prompt block, or "" when
// there is nothing worth telling the model.
func (s *State) FormatForPrompt() string {
	lines := []string{"[对话状态]"}
	if s.IsFirstConversation {
		lines = append(lines, "- 这是你们的第一次对话")
	} else {
		lines = append(lines, fmt.Sprintf("- 这是你们的第%d次对话，本次会话第%d轮", s.TotalSessions, s.TurnIndex))
		if s.DaysSinceLast > 0 {
			lines = append(lines, fmt.Sprintf("- 距离上次对话已过去%d天", s.DaysSinceLast))
		}
	}
	if s.IsFollowup {
		lines = append(lines, "- 用户正在追问，请直接回应，不要寒暄")
	}
	switch s.TimeOfDay {
	case TimeLateNight:
		lines = append(lines, "- 当前时间：深夜")
	case TimeMorning:
		lines = append(lines, "- 当前时间：上午")
	case TimeEvening:
		lines = append(lines, "- 当前时间：晚上")
	}
	switch s.UserMsgLength {
	case LengthShort:
		lines = append(lines, "- 用户消息较短，回复也保持简短")
	case LengthLong:
		lines = append(lines, "- 用户消息较长，可以给出详细回复")
	}
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// ToKV returns the state as structured attributes for tracing and hooks.
func (s *State) ToKV() map[string]any {
	return map[string]any{
		"sdk.conversation.days_since_last": s.DaysSinceLast,
		"sdk.conversation.total_sessions":  s.TotalSessions,
		"sdk.conversation.is_first":        s.IsFirstConversation,
		"sdk.session.turn_index":           s.TurnIndex,
		"sdk.session.duration_sec":         int(s.SessionDuration.Seconds()),
		"sdk.user.is_followup":             s.IsFollowup,
		"sdk.user.msg_length":              s.UserMsgLength,
		"sdk.runtime.time_of_day":          s.TimeOfDay,
		"sdk.runtime.local_time":           s.LocalTime,
	}
}

// conversationMeta is the persisted cross-session record.
type conversationMeta struct {
	LastAt        string `json:"last_at,omitempty"`
	TotalSessions int    `json:"total_sessions,omitempty"`
}

// StateTracker derives State from the session's working memory (per-session
// counters) and a persisted meta record (cross-session history).
type StateTracker struct {
	loc            *time.Location
	followupWindow time.Duration
}

// NewStateTracker creates a tracker. A nil location defaults to time.Local;
// a non-positive window defaults to 60 seconds.
func NewStateTracker(loc *time.Location, followupWindow time.Duration) *StateTracker {
	if loc == nil {
		loc = time.Local
	}
	if followupWindow <= 0 {
		followupWindow = 60 * time.Second
	}
	return &StateTracker{loc: loc, followupWindow: followupWindow}
}

// Track advances the per-session counters and returns the derived state.
func (t *StateTracker) Track(ctx context.Context, session *memory.Session, userInput string, now time.Time) (*State, error) {
	wm := session.Working
	localNow := now.In(t.loc)

	turnIndex := 1
	if prev, ok := wm.Get(turnIndexKey).(int); ok {
		turnIndex = prev + 1
	}
	wm.Set(turnIndexKey, turnIndex)

	if wm.GetString(sessionStartKey) == "" {
		wm.Set(sessionStartKey, now.Format(time.RFC3339Nano))
	}
	var sessionDuration time.Duration
	if start, err := time.Parse(time.RFC3339Nano, wm.GetString(sessionStartKey)); err == nil {
		sessionDuration = now.Sub(start)
	}

	isFollowup := false
	if last, err := time.Parse(time.RFC3339Nano, wm.GetString(lastMessageKey)); err == nil {
		isFollowup = now.Sub(last) <= t.followupWindow
	}
	wm.Set(lastMessageKey, now.Format(time.RFC3339Nano))

	meta, err := t.loadMeta(ctx, session)
	if err != nil {
		return nil, err
	}
	daysSinceLast := -1
	if meta.LastAt != "" {
		if lastAt, err := time.Parse(time.RFC3339Nano, meta.LastAt); err == nil {
			days := int(now.Sub(lastAt).Hours() / 24)
			if days < 0 {
				days = 0
			}
			daysSinceLast = days
		}
	}

	return &State{
		TurnIndex:           turnIndex,
		IsFollowup:          isFollowup,
		IsFirstConversation: daysSinceLast == -1,
		SessionDuration:     sessionDuration,
		DaysSinceLast:       daysSinceLast,
		TotalSessions:       meta.TotalSessions,
		TimeOfDay:           classifyTimeOfDay(localNow.Hour()),
		UserMsgLength:       classifyMsgLength(utf8.RuneCountInString(userInput)),
		LocalTime:           localNow.Format(time.RFC3339),
	}, nil
}

// TouchSession bumps the persisted session counter and last-seen time.
// Called once per session, on its first turn.
func (t *StateTracker) TouchSession(ctx context.Context, session *memory.Session, now time.Time) error {
	meta, err := t.loadMeta(ctx, session)
	if err != nil {
		return err
	}
	meta.TotalSessions++
	meta.LastAt = now.Format(time.RFC3339Nano)
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("natural: encode conversation meta: %w", err)
	}
	if err := session.Store().Set(ctx, session.Namespace(), metaKey, raw); err != nil {
		return fmt.Errorf("natural: save conversation meta: %w", err)
	}
	return nil
}

func (t *StateTracker) loadMeta(ctx context.Context, session *memory.Session) (*conversationMeta, error) {
	raw, ok, err := session.Store().Get(ctx, session.Namespace(), metaKey)
	if err != nil {
		return nil, fmt.Errorf("natural: load conversation meta: %w", err)
	}
	meta := &conversationMeta{}
	if ok {
		// Undecodable meta degrades to a fresh record.
		_ = json.Unmarshal(raw, meta)
	}
	return meta, nil
}

func classifyTimeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 18:
		return TimeAfternoon
	case hour >= 18 && hour < 23:
		return TimeEvening
	default:
		return TimeLateNight
	}
}

func classifyMsgLength(runes int) string {
	switch {
	case runes < 20:
		return LengthShort
	case runes <= 120:
		return LengthMedium
	default:
		return LengthLong
	}
}
