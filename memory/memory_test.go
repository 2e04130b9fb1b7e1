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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMergeRecursesMaps(t *testing.T) {
	base := map[string]any{
		"basic_info": map[string]any{"age": 20, "location": "Shanghai"},
	}
	override := map[string]any{
		"basic_info": map[string]any{"age": 21, "occupation": "student"},
	}
	merged := deepMerge(base, override)

	info := merged["basic_info"].(map[string]any)
	assert.Equal(t, 21, info["age"])
	assert.Equal(t, "Shanghai", info["location"])
	assert.Equal(t, "student", info["occupation"])

	// Base must not be mutated.
	assert.Equal(t, 20, base["basic_info"].(map[string]any)["age"])
}

func TestDeepMergeExtendsListsWithDedup(t *testing.T) {
	base := map[string]any{"interests": []any{"music", "running"}}
	override := map[string]any{"interests": []any{"running", "cooking"}}
	merged := deepMerge(base, override)

	assert.Equal(t, []any{"music", "running", "cooking"}, merged["interests"])
	assert.Equal(t, []any{"music", "running"}, base["interests"])
}

func TestDeepMergeSkipsNilAndOverwritesScalars(t *testing.T) {
	base := map[string]any{"summary": "old", "score": 1}
	override := map[string]any{"summary": nil, "score": 2, "new": "value"}
	merged := deepMerge(base, override)

	assert.Equal(t, "old", merged["summary"])
	assert.Equal(t, 2, merged["score"])
	assert.Equal(t, "value", merged["new"])
}

func TestDeepMergeTypeMismatchOverwrites(t *testing.T) {
	base := map[string]any{"field": map[string]any{"a": 1}}
	override := map[string]any{"field": "plain"}
	merged := deepMerge(base, override)
	assert.Equal(t, "plain", merged["field"])
}

func TestDefaultSchemaShape(t *testing.T) {
	schema := DefaultSchema()
	require.Contains(t, schema, "basic_info")
	require.Contains(t, schema, "personality")
	require.Contains(t, schema, "life_context")
	require.Contains(t, schema, "interests")
	require.Contains(t, schema, "summary")
	require.Contains(t, schema, "preferences")
	meta := schema["meta"].(map[string]any)
	assert.Equal(t, 0, meta["conversation_count"])

	// Each call returns an independent copy.
	schema["summary"] = "mutated"
	assert.Equal(t, "", DefaultSchema()["summary"])
}

func TestNewMessageStampsTimestamp(t *testing.T) {
	msg := NewMessage("user", "hello")
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.Timestamp)
}

func TestWorkingMemory(t *testing.T) {
	w := NewWorkingMemory()
	assert.Nil(t, w.Get("intent"))
	assert.False(t, w.Contains("intent"))

	w.Set("intent", "booking")
	assert.Equal(t, "booking", w.Get("intent"))
	assert.Equal(t, "booking", w.GetString("intent"))
	assert.True(t, w.Contains("intent"))
	assert.Equal(t, 1, w.Len())

	w.Update(map[string]any{"step": 2})
	snap := w.Snapshot()
	assert.Equal(t, "booking", snap["intent"])
	assert.Equal(t, 2, snap["step"])

	// Snapshot is detached from internal state.
	snap["intent"] = "other"
	assert.Equal(t, "booking", w.Get("intent"))

	w.Delete("intent")
	assert.False(t, w.Contains("intent"))
	w.Clear()
	assert.Equal(t, 0, w.Len())
}
