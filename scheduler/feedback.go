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
	"strconv"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

// DefaultFeedbackPatterns maps preference keys to value keywords. A user
// message containing one of the keywords switches the preference to that
// value.
func DefaultFeedbackPatterns() map[string]map[string][]string {
	return map[string]map[string][]string{
		"style": {
			"concise":  {"太长了", "啰嗦", "简短点", "说重点", "太多了", "精简", "简洁"},
			"detailed": {"详细说说", "展开讲讲", "多说一些", "说详细点", "具体讲讲"},
		},
		"tone": {
			"casual": {"说人话", "白话", "通俗点", "别那么正式", "轻松一点"},
			"formal": {"专业一些", "正式一些", "文雅一些"},
		},
	}
}

// DefaultPreferencePrompts maps preference values to the system-prompt
// hint injected for them.
func DefaultPreferencePrompts() map[string]map[string]string {
	return map[string]map[string]string{
		"style": {
			"concise":  "这位用户偏好简洁的回复，请控制在 100 字以内，直接说重点。",
			"detailed": "这位用户喜欢详细的解读，可以展开讲解，不用担心太长。",
		},
		"tone": {
			"casual": "这位用户喜欢轻松口语化的表达，少用正式或文言风格。",
			"formal": "这位用户喜欢专业正式的表达风格。",
		},
	}
}

// FeedbackResult reports what a message changed.
type FeedbackResult struct {
	// Matched reports whether any feedback signal was detected.
	Matched bool
	// Changes maps preference keys to their new values.
	Changes map[string]string
	// Triggers maps preference keys to the keyword that matched.
	Triggers map[string]string
}

// OnChangeFunc is notified after DetectAndAdapt applies changes.
type OnChangeFunc func(ctx context.Context, userID string, changes map[string]string)

// FeedbackDetector extracts style/tone feedback signals from short user
// messages ("太长了" switches style to concise) so replies adapt without an
// extra model call.
type FeedbackDetector struct {
	patterns  map[string]map[string][]string
	maxLength int
	onChange  OnChangeFunc
}

// FeedbackOption configures a FeedbackDetector.
type FeedbackOption func(*FeedbackDetector)

// WithFeedbackPatterns replaces the default keyword map.
func WithFeedbackPatterns(patterns map[string]map[string][]string) FeedbackOption {
	return func(d *FeedbackDetector) { d.patterns = patterns }
}

// WithFeedbackMaxLength sets the message length above which detection is
// skipped; long messages are unlikely to be feedback. Default 50.
func WithFeedbackMaxLength(n int) FeedbackOption {
	return func(d *FeedbackDetector) { d.maxLength = n }
}

// WithOnChange sets the callback fired after preferences change.
func WithOnChange(fn OnChangeFunc) FeedbackOption {
	return func(d *FeedbackDetector) { d.onChange = fn }
}

// NewFeedbackDetector creates a detector with the default Chinese keyword
// patterns.
func NewFeedbackDetector(opts ...FeedbackOption) *FeedbackDetector {
	d := &FeedbackDetector{
		patterns:  DefaultFeedbackPatterns(),
		maxLength: 50,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddPattern appends keywords for one preference value.
func (d *FeedbackDetector) AddPattern(prefKey, prefValue string, keywords ...string) {
	if d.patterns[prefKey] == nil {
		d.patterns[prefKey] = make(map[string][]string)
	}
	d.patterns[prefKey][prefValue] = append(d.patterns[prefKey][prefValue], keywords...)
}

// Detect scans message for feedback keywords. Changes only contains
// preferences whose value actually differs from current.
func (d *FeedbackDetector) Detect(message string, current map[string]string) FeedbackResult {
	result := FeedbackResult{
		Changes:  make(map[string]string),
		Triggers: make(map[string]string),
	}
	msg := strings.TrimSpace(message)
	if msg == "" || len([]rune(msg)) > d.maxLength {
		return result
	}
	for prefKey, valueMap := range d.patterns {
		for prefValue, keywords := range valueMap {
			matched := false
			for _, kw := range keywords {
				if strings.Contains(msg, kw) {
					if current[prefKey] != prefValue {
						result.Matched = true
						result.Changes[prefKey] = prefValue
						result.Triggers[prefKey] = kw
					}
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}
	return result
}

// DetectAndAdapt runs Detect, applies the changes to preferences in place,
// stamps updated_at and fires the on-change callback.
func (d *FeedbackDetector) DetectAndAdapt(
	ctx context.Context, userID, message string, preferences map[string]string,
) FeedbackResult {
	result := d.Detect(message, preferences)
	if !result.Matched {
		return result
	}
	for prefKey, value := range result.Changes {
		log.Infof("Preference adapted | user=%s | %s: %s -> %s | keyword=%s",
			userID, prefKey, preferences[prefKey], value, result.Triggers[prefKey])
		preferences[prefKey] = value
	}
	preferences["updated_at"] = time.Now().Format(time.RFC3339)
	if d.onChange != nil {
		d.onChange(ctx, userID, result.Changes)
	}
	return result
}

// BuildPreferencePrompt renders a system-prompt block for the user's
// stored preferences. Returns "" when no preference maps to a hint.
func BuildPreferencePrompt(preferences map[string]string, promptMap map[string]map[string]string, header string) string {
	if promptMap == nil {
		promptMap = DefaultPreferencePrompts()
	}
	if header == "" {
		header = "回复风格偏好："
	}
	var hints []string
	for _, prefKey := range sortedPrefKeys(preferences) {
		if prefKey == "updated_at" {
			continue
		}
		if text := promptMap[prefKey][preferences[prefKey]]; text != "" {
			hints = append(hints, text)
		}
	}
	if len(hints) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(hints, "\n")
}

func sortedPrefKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reaction classifies a user's reply to a proactive message.
type Reaction string

// Reaction values.
const (
	ReactionPositive Reaction = "positive"
	ReactionNegative Reaction = "negative"
	ReactionNeutral  Reaction = "neutral"
)

var (
	negativeReactionKeywords = []string{
		"别发了", "烦", "不要发", "取消", "闭嘴", "打扰",
		"stop", "annoying", "unsubscribe", "spam",
	}
	positiveReactionKeywords = []string{
		"谢谢", "好的", "哈哈", "不错", "喜欢", "贴心",
		"thanks", "nice", "great", "love it",
	}
)

// DetectReaction classifies reply as positive, negative or neutral.
// Negative keywords win over positive ones.
func DetectReaction(reply string) Reaction {
	lower := strings.ToLower(reply)
	for _, kw := range negativeReactionKeywords {
		if strings.Contains(lower, kw) {
			return ReactionNegative
		}
	}
	for _, kw := range positiveReactionKeywords {
		if strings.Contains(lower, kw) {
			return ReactionPositive
		}
	}
	return ReactionNeutral
}

// Proactive-score constants. The score starts at DefaultProactiveScore and
// is nudged by reactions; the scheduler stops messaging users whose score
// drops below MinProactiveScore.
const (
	DefaultProactiveScore = 0.5
	MinProactiveScore     = 0.2

	positiveScoreDelta = 0.1
	negativeScoreDelta = -0.2

	scoreAgentID       = "scheduler"
	scoreTask          = "feedback"
	proactiveScoreKey  = "proactive_score:"
	scoreStoreFieldFmt = "%.4f"
)

// ProactiveScore returns the user's current proactive-message score.
func ProactiveScore(ctx context.Context, st store.Store, userID string) (float64, error) {
	ns := store.NewNamespace(scoreAgentID, scoreTask)
	raw, ok, err := st.Get(ctx, ns, proactiveScoreKey+userID)
	if err != nil {
		return 0, fmt.Errorf("scheduler: read proactive score: %w", err)
	}
	if !ok {
		return DefaultProactiveScore, nil
	}
	score, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return DefaultProactiveScore, nil
	}
	return score, nil
}

// AdjustProactiveScore applies the reaction's delta to the user's score,
// clamped to [0, 1], and returns the new value.
func AdjustProactiveScore(ctx context.Context, st store.Store, userID string, r Reaction) (float64, error) {
	score, err := ProactiveScore(ctx, st, userID)
	if err != nil {
		return 0, err
	}
	switch r {
	case ReactionPositive:
		score += positiveScoreDelta
	case ReactionNegative:
		score += negativeScoreDelta
	default:
		return score, nil
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	ns := store.NewNamespace(scoreAgentID, scoreTask)
	value := fmt.Sprintf(scoreStoreFieldFmt, score)
	if err := st.Set(ctx, ns, proactiveScoreKey+userID, []byte(value)); err != nil {
		return 0, fmt.Errorf("scheduler: save proactive score: %w", err)
	}
	return score, nil
}
