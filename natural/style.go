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
	"fmt"
	"math/rand"
	"strings"
)

// NaturalEndings are appended after a truncation cut so the reply still
// reads finished.
var NaturalEndings = []string{"先说到这儿。", "大概就是这样。", "就先聊这些吧。", "回头再细说。"}

// DefaultForbiddenPhrases are assistant cliches removed from every reply.
var DefaultForbiddenPhrases = []string{
	"作为一个AI", "作为AI助手", "作为一个人工智能",
	"我是一个AI", "我是AI助手",
	"有什么我可以帮你的", "还有什么需要帮忙的",
	"请问还有什么", "很高兴为你服务",
	"希望对你有帮助", "如果你有任何问题",
}

// Style-violation tags recorded by PostProcess.
const (
	violationForbidden   = "style.forbidden_removed:"
	violationTruncated   = "style.truncated:"
	violationEndQuestion = "style.end_question_fixed"
)

// EndStyleNoQuestion rewrites a trailing question mark into a period.
const EndStyleNoQuestion = "no_question"

// StyleConfig controls the response style controller.
type StyleConfig struct {
	// MaxLength is the hard rune budget; longer replies are cut at a
	// sentence boundary. Non-positive disables truncation.
	MaxLength int
	// MinPreserve is the length below which replies are never cut.
	MinPreserve int
	// PreferredLength is the soft budget mentioned in the style prompt.
	PreferredLength int
	// ForbiddenPhrases are removed verbatim from replies.
	ForbiddenPhrases []string
	// EndStyle is the reply-ending rule, EndStyleNoQuestion or "".
	EndStyle string
	// EnableRetry makes the pipeline offer a regenerate prompt when the
	// reply violated the style rules.
	EnableRetry bool
}

// DefaultStyleConfig returns the stock configuration.
func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		MaxLength:        300,
		MinPreserve:      40,
		PreferredLength:  150,
		ForbiddenPhrases: append([]string(nil), DefaultForbiddenPhrases...),
		EndStyle:         EndStyleNoQuestion,
	}
}

// StyleController shapes replies after the model produced them. All work
// is local string processing, never another model call.
type StyleController struct {
	config StyleConfig
}

// NewStyleController creates a controller for the given config.
func NewStyleController(config StyleConfig) *StyleController {
	return &StyleController{config: config}
}

// BuildStylePrompt renders the style hint injected before generation,
// or "" when no rule needs announcing.
func (c *StyleController) BuildStylePrompt() string {
	var parts []string
	if c.config.PreferredLength > 0 {
		parts = append(parts, fmt.Sprintf("回复请控制在%d字以内，简洁为主。", c.config.PreferredLength))
	}
	if c.config.EndStyle == EndStyleNoQuestion {
		parts = append(parts, "回复结尾不要以问句结束。")
	}
	if len(parts) == 0 {
		return ""
	}
	return "[回复风格] " + strings.Join(parts, " ")
}

// PostProcess applies forbidden-phrase removal, natural truncation and the
// ending rule. It returns the corrected text, whether anything changed,
// and the violation tags.
func (c *StyleController) PostProcess(output string) (string, bool, []string) {
	result := output
	changed := false
	var violations []string

	for _, phrase := range c.config.ForbiddenPhrases {
		if strings.Contains(result, phrase) {
			result = strings.ReplaceAll(result, phrase, "")
			violations = append(violations, violationForbidden+phrase)
			changed = true
		}
	}
	if changed {
		for strings.Contains(result, "  ") {
			result = strings.ReplaceAll(result, "  ", " ")
		}
		for strings.Contains(result, "\n\n\n") {
			result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
		}
	}

	runes := []rune(result)
	if c.config.MaxLength > 0 && len(runes) > c.config.MaxLength && len(runes) > c.config.MinPreserve {
		truncated := truncateNatural(runes, c.config.MaxLength)
		if truncated != result {
			result = truncated
			violations = append(violations, fmt.Sprintf("%sexceeded_%d", violationTruncated, c.config.MaxLength))
			changed = true
		}
	}

	if c.config.EndStyle == EndStyleNoQuestion {
		trimmed := strings.TrimSpace(result)
		switch {
		case strings.HasSuffix(trimmed, "？"):
			result = strings.TrimSuffix(trimmed, "？") + "。"
			violations = append(violations, violationEndQuestion)
			changed = true
		case strings.HasSuffix(trimmed, "?"):
			result = strings.TrimSuffix(trimmed, "?") + "."
			violations = append(violations, violationEndQuestion)
			changed = true
		}
	}

	return strings.TrimSpace(result), changed, violations
}

// BuildRetryPrompt renders a regenerate instruction for the violations,
// or "" when none maps to a hint.
func (c *StyleController) BuildRetryPrompt(violations []string) string {
	var hints []string
	for _, v := range violations {
		switch {
		case strings.HasPrefix(v, violationTruncated):
			hints = append(hints, fmt.Sprintf("请将回复控制在%d字以内", c.config.MaxLength))
		case strings.HasPrefix(v, violationForbidden):
			hints = append(hints, "不要使用套话，直接回答")
		case v == violationEndQuestion:
			hints = append(hints, "回复结尾不要以问号结束")
		}
	}
	if len(hints) == 0 {
		return ""
	}
	return "[重新生成] 上一次回复不满足风格要求：" + strings.Join(hints, "；") + "。请重新回复。"
}

// truncateNatural cuts runes to at most maxLen, preferring the last
// sentence boundary in the upper half of the budget, and appends a stock
// closing so the cut does not read abrupt.
func truncateNatural(runes []rune, maxLen int) string {
	if len(runes) <= maxLen {
		return string(runes)
	}
	bestCut := maxLen
	for i := maxLen - 1; i > maxLen/2; i-- {
		if isSentenceEnd(runes[i]) {
			bestCut = i + 1
			break
		}
	}
	truncated := strings.TrimSpace(string(runes[:bestCut]))
	return truncated + NaturalEndings[rand.Intn(len(NaturalEndings))]
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?', '\n':
		return true
	}
	return false
}
