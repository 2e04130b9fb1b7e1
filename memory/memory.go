//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package memory implements the three-layer conversation memory:
// working memory for the current session, short-term history passed to the
// model as context, and a structured long-term profile that survives
// sessions. A conversation buffer accumulates messages until an extractor
// distills them into long-term memory.
package memory

import (
	"fmt"
	"time"
)

// Message is a single conversation message as persisted by the memory
// layers.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// Context is a snapshot of all three memory layers.
type Context struct {
	Working   map[string]any
	ShortTerm []Message
	LongTerm  map[string]any
}

// DefaultSchema returns the initial long-term memory template for new
// users.
func DefaultSchema() map[string]any {
	return map[string]any{
		"basic_info":   map[string]any{},
		"personality":  map[string]any{},
		"life_context": map[string]any{},
		"interests":    []any{},
		"summary":      "",
		"preferences":  map[string]any{},
		"meta": map[string]any{
			"conversation_count": 0,
			"created_at":         "",
			"updated_at":         "",
		},
	}
}

// deepMerge recursively merges override into base without mutating either.
//
// Maps merge recursively, lists extend with simple-value dedup, scalars in
// override win, and nil override values are skipped.
func deepMerge(base, override map[string]any) map[string]any {
	result := deepCopyMap(base)
	for key, value := range override {
		if value == nil {
			continue
		}
		existing, ok := result[key]
		if !ok {
			result[key] = deepCopyValue(value)
			continue
		}
		existingMap, isMap := existing.(map[string]any)
		valueMap, isValueMap := value.(map[string]any)
		if isMap && isValueMap {
			result[key] = deepMerge(existingMap, valueMap)
			continue
		}
		existingList, isList := existing.([]any)
		valueList, isValueList := value.([]any)
		if isList && isValueList {
			seen := make(map[string]struct{}, len(existingList))
			merged := make([]any, len(existingList))
			copy(merged, existingList)
			for _, item := range existingList {
				seen[fmt.Sprintf("%v", item)] = struct{}{}
			}
			for _, item := range valueList {
				repr := fmt.Sprintf("%v", item)
				if _, dup := seen[repr]; dup {
					continue
				}
				merged = append(merged, deepCopyValue(item))
				seen[repr] = struct{}{}
			}
			result[key] = merged
			continue
		}
		result[key] = deepCopyValue(value)
	}
	return result
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// asInt coerces JSON-decoded numbers to int for counter arithmetic.
func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
