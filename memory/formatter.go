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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPromptTemplate frames the formatted profile for system prompt
// injection. It must keep the {long_term_text} placeholder.
const DefaultPromptTemplate = `以下是该用户的个人信息（不是你自己的信息）。
当用户问关于自己的问题时，必须根据以下档案回答：

{long_term_text}`

// basicInfoLabels maps profile fields to display labels in a fixed order.
var basicInfoLabels = []struct {
	field string
	label string
}{
	{"age", "年龄"},
	{"gender", "性别"},
	{"location", "位置"},
	{"occupation", "职业"},
	{"school", "学校"},
	{"major", "专业"},
	{"nickname", "昵称"},
	{"birthday", "生日"},
}

// FormatForPrompt formats memory layers into a text block for system
// prompt injection. It returns "" when there is no meaningful content.
// An empty template uses DefaultPromptTemplate.
func FormatForPrompt(longTerm, working map[string]any, template string) string {
	var parts []string

	if text := formatLongTerm(longTerm); text != "" {
		parts = append(parts, text)
	}

	if len(working) > 0 {
		keys := make([]string, 0, len(working))
		for k := range working {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var items []string
		for _, k := range keys {
			if v := stringValue(working[k]); v != "" {
				items = append(items, fmt.Sprintf("- %s: %s", k, v))
			}
		}
		if len(items) > 0 {
			parts = append(parts, "当前会话上下文：\n"+strings.Join(items, "\n"))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	combined := strings.Join(parts, "\n\n")
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{long_term_text}", combined)
}

// formatLongTerm renders the structured profile as human-readable lines.
func formatLongTerm(memory map[string]any) string {
	if memory == nil {
		return ""
	}
	var lines []string

	if basic, ok := memory["basic_info"].(map[string]any); ok && hasValues(basic) {
		lines = append(lines, "用户基本信息：")
		for _, fl := range basicInfoLabels {
			if val := stringValue(basic[fl.field]); val != "" {
				lines = append(lines, fmt.Sprintf("  - %s: %s", fl.label, val))
			}
		}
	}

	if personality, ok := memory["personality"].(map[string]any); ok {
		if traits := joinList(personality["traits"]); traits != "" {
			lines = append(lines, "性格特点: "+traits)
		}
		if values := joinList(personality["values"]); values != "" {
			lines = append(lines, "价值观: "+values)
		}
	}

	if life, ok := memory["life_context"].(map[string]any); ok {
		if concerns := joinList(life["concerns"]); concerns != "" {
			lines = append(lines, "当前困扰: "+concerns)
		}
		if goals := joinList(life["goals"]); goals != "" {
			lines = append(lines, "目标: "+goals)
		}
		if events := joinList(life["recent_events"]); events != "" {
			lines = append(lines, "近期事件: "+events)
		}
	}

	if interests := joinList(memory["interests"]); interests != "" {
		lines = append(lines, "兴趣爱好: "+interests)
	}

	if summary := stringValue(memory["summary"]); summary != "" {
		lines = append(lines, "用户特点: "+summary)
	}

	if meta, ok := memory["meta"].(map[string]any); ok {
		if count := asInt(meta["conversation_count"]); count > 0 {
			lines = append(lines, fmt.Sprintf("（已对话 %d 次）", count))
		}
	}

	return strings.Join(lines, "\n")
}

func hasValues(m map[string]any) bool {
	for _, v := range m {
		if stringValue(v) != "" {
			return true
		}
	}
	return false
}

// stringValue renders a profile value, treating empty and zero values as
// absent.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// joinList joins a JSON array of simple values with ", ".
func joinList(v any) string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	return strings.Join(parts, ", ")
}
