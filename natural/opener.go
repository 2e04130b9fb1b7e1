//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package natural

import "fmt"

// Opener situations, in priority order.
const (
	SituationFollowup     = "followup"
	SituationFirstMeeting = "first_meeting"
	SituationLongAbsence  = "long_absence"
	SituationLateNight    = "late_night"
	SituationNormal       = "normal"
)

// OpenerStrategy is the selected opening hint for this turn.
type OpenerStrategy struct {
	// Situation labels the matched case.
	Situation string
	// Hint is the system-prompt instruction, "" for normal turns.
	Hint string
}

// FormatForPrompt renders the hint as a system-prompt block, or "".
func (s *OpenerStrategy) FormatForPrompt() string {
	if s.Hint == "" {
		return ""
	}
	return "[开场策略] " + s.Hint
}

// OpenerConfig bounds the opener generator.
type OpenerConfig struct {
	// MaxMentionsPerSession caps how many turns per session get an
	// opener hint. Default 1.
	MaxMentionsPerSession int
	// LongAbsenceDays is the gap that counts as a long absence.
	// Default 3.
	LongAbsenceDays int
}

// DefaultOpenerConfig returns the stock configuration.
func DefaultOpenerConfig() OpenerConfig {
	return OpenerConfig{MaxMentionsPerSession: 1, LongAbsenceDays: 3}
}

// OpenerGenerator picks an opening strategy from the conversation state.
type OpenerGenerator struct {
	config OpenerConfig
}

// NewOpenerGenerator creates a generator for the given config.
func NewOpenerGenerator(config OpenerConfig) *OpenerGenerator {
	if config.MaxMentionsPerSession <= 0 {
		config.MaxMentionsPerSession = 1
	}
	if config.LongAbsenceDays <= 0 {
		config.LongAbsenceDays = 3
	}
	return &OpenerGenerator{config: config}
}

// Generate picks the strategy for the turn. sessionOpenerCount is how many
// opener hints were already issued this session; once the budget is spent
// every turn is normal.
func (g *OpenerGenerator) Generate(st *State, sessionOpenerCount int) OpenerStrategy {
	if st == nil || sessionOpenerCount >= g.config.MaxMentionsPerSession {
		return OpenerStrategy{Situation: SituationNormal}
	}
	if st.IsFollowup {
		return OpenerStrategy{
			Situation: SituationFollowup,
			Hint:      "用户在追问，不要寒暄，直接回应上一个问题。",
		}
	}
	if st.IsFirstConversation {
		return OpenerStrategy{
			Situation: SituationFirstMeeting,
			Hint:      "这是你们第一次对话，自然地打个招呼，不要问「有什么可以帮你的」。",
		}
	}
	if st.DaysSinceLast >= g.config.LongAbsenceDays {
		return OpenerStrategy{
			Situation: SituationLongAbsence,
			Hint:      fmt.Sprintf("距离上次对话已经%d天了，可以自然地表达「好久没聊了」的意思，但不要太正式。", st.DaysSinceLast),
		}
	}
	if st.TimeOfDay == TimeLateNight {
		return OpenerStrategy{
			Situation: SituationLateNight,
			Hint:      "现在是深夜，语气可以更轻松随意，如果用户聊到很晚可以温柔提醒。",
		}
	}
	return OpenerStrategy{Situation: SituationNormal}
}
