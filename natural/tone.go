//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package natural

import "strings"

// Moods reported by the tone detector.
const (
	MoodNeutral = "neutral"
	MoodAngry   = "angry"
	MoodAnxious = "anxious"
	MoodHappy   = "happy"
	MoodSad     = "sad"
)

// toneConfidenceFloor is the minimum score a mood needs to win; anything
// below reports neutral.
const toneConfidenceFloor = 0.3

// Tone is the detected emotional tone of one user message.
type Tone struct {
	// Mood is the winning mood, or neutral.
	Mood string
	// Confidence is the winning score capped at 1.0, 0 for neutral.
	Confidence float64
	// Scores holds the per-mood raw scores.
	Scores map[string]float64
}

// FormatForPrompt renders a system-prompt hint for the mood, or "" for
// neutral or low confidence.
func (t *Tone) FormatForPrompt() string {
	if t.Mood == MoodNeutral || t.Confidence < toneConfidenceFloor {
		return ""
	}
	hints := map[string]string{
		MoodAngry:   "用户语气较为强烈，请保持耐心，注意措辞温和",
		MoodAnxious: "用户语气偏急促，请简洁直接回应，不要废话",
		MoodHappy:   "用户心情不错，可以轻松互动",
		MoodSad:     "用户情绪偏低落，请语气温和关切",
	}
	hint := hints[t.Mood]
	if hint == "" {
		return ""
	}
	return "[用户情绪] " + hint
}

type weightedKeyword struct {
	keyword string
	weight  float64
}

func defaultTonePatterns() map[string][]weightedKeyword {
	return map[string][]weightedKeyword{
		MoodAngry: {
			{"什么破", 0.5}, {"垃圾", 0.5}, {"搞什么", 0.5}, {"有病", 0.5},
			{"废物", 0.5}, {"能不能正常", 0.5},
			{"bullshit", 0.5}, {"wtf", 0.5}, {"terrible", 0.4}, {"useless", 0.4},
		},
		MoodAnxious: {
			{"快点", 0.4}, {"赶紧", 0.4}, {"急", 0.4}, {"等不了", 0.4},
			{"尽快", 0.4}, {"马上", 0.3},
			{"asap", 0.4}, {"hurry", 0.4}, {"quick", 0.3}, {"urgent", 0.4},
		},
		MoodHappy: {
			{"太好了", 0.3}, {"哈哈", 0.3}, {"棒", 0.3}, {"开心", 0.3},
			{"nice", 0.3}, {"awesome", 0.3}, {"great", 0.3}, {"love it", 0.3},
		},
		MoodSad: {
			{"唉", 0.4}, {"算了", 0.4}, {"难过", 0.4}, {"失望", 0.4},
			{"无所谓了", 0.4},
			{"sigh", 0.4}, {"forget it", 0.4}, {"disappointed", 0.4},
		},
	}
}

// ToneDetector scores user messages against weighted keyword lists in four
// moods, bilingually. It is rule-based on purpose: no model call, no
// latency.
type ToneDetector struct {
	patterns map[string][]weightedKeyword
}

// NewToneDetector creates a detector with the default bilingual patterns.
func NewToneDetector() *ToneDetector {
	return &ToneDetector{patterns: defaultTonePatterns()}
}

// Detect scores userInput. A short followup message leans anxious; two or
// more exclamation marks boost the leading mood.
func (d *ToneDetector) Detect(userInput string, st *State) Tone {
	lower := strings.ToLower(userInput)
	scores := map[string]float64{
		MoodNeutral: 0, MoodAngry: 0, MoodAnxious: 0, MoodHappy: 0, MoodSad: 0,
	}
	for mood, keywords := range d.patterns {
		for _, kw := range keywords {
			if strings.Contains(lower, kw.keyword) {
				scores[mood] += kw.weight
			}
		}
	}

	if st != nil && st.IsFollowup && st.UserMsgLength == LengthShort {
		scores[MoodAnxious] += 0.2
	}

	exclamations := strings.Count(userInput, "!") + strings.Count(userInput, "！")
	if exclamations >= 2 {
		boost := float64(exclamations) * 0.1
		if boost > 0.2 {
			boost = 0.2
		}
		if mood, score := topMood(scores); score > 0 {
			scores[mood] += boost
		}
	}

	mood, score := topMood(scores)
	confidence := score
	if confidence > 1 {
		confidence = 1
	}
	if confidence < toneConfidenceFloor {
		mood = MoodNeutral
		confidence = 0
	}
	return Tone{Mood: mood, Confidence: confidence, Scores: scores}
}

// topMood returns the highest-scoring non-neutral mood. Ties break in a
// fixed mood order so results are deterministic.
func topMood(scores map[string]float64) (string, float64) {
	best := MoodNeutral
	bestScore := 0.0
	for _, mood := range []string{MoodAngry, MoodAnxious, MoodHappy, MoodSad} {
		if scores[mood] > bestScore {
			best = mood
			bestScore = scores[mood]
		}
	}
	return best, bestScore
}
