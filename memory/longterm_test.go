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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongTermNewUserGetsDefaultSchema(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns)

	data, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Contains(t, data, "basic_info")
	meta := data["meta"].(map[string]any)
	assert.NotEmpty(t, meta["created_at"])
	assert.Equal(t, 0, asInt(meta["conversation_count"]))
}

func TestLongTermSaveAndReload(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns, WithCacheTTL(0))

	data, err := mem.Get(ctx)
	require.NoError(t, err)
	data["summary"] = "likes jazz"
	require.NoError(t, mem.Save(ctx, data))

	meta := data["meta"].(map[string]any)
	assert.NotEmpty(t, meta["updated_at"])

	reloaded, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "likes jazz", reloaded["summary"])
}

func TestLongTermUpdateDeepMergesAndCounts(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns)

	merged, err := mem.Update(ctx, map[string]any{
		"basic_info": map[string]any{"location": "Beijing"},
		"interests":  []any{"hiking"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Beijing", merged["basic_info"].(map[string]any)["location"])
	assert.Equal(t, 1, asInt(merged["meta"].(map[string]any)["conversation_count"]))

	merged, err = mem.Update(ctx, map[string]any{
		"basic_info": map[string]any{"occupation": "engineer"},
		"interests":  []any{"hiking", "reading"},
	})
	require.NoError(t, err)
	info := merged["basic_info"].(map[string]any)
	assert.Equal(t, "Beijing", info["location"])
	assert.Equal(t, "engineer", info["occupation"])
	assert.Equal(t, []any{"hiking", "reading"}, merged["interests"])
	assert.Equal(t, 2, asInt(merged["meta"].(map[string]any)["conversation_count"]))
}

func TestLongTermCacheServesRepeatReads(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns)

	first, err := mem.Get(ctx)
	require.NoError(t, err)

	// Write behind the cache's back; cached Get should not see it.
	require.NoError(t, st.Set(ctx, ns, "long_term", []byte(`{"summary":"external"}`)))
	second, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first["summary"], second["summary"])

	mem.InvalidateCache()
	third, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "external", third["summary"])
}

func TestLongTermCacheDisabled(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns, WithCacheTTL(0))

	_, err := mem.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, ns, "long_term", []byte(`{"summary":"external"}`)))

	data, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "external", data["summary"])
}

func TestLongTermCorruptDocumentFallsBackToSchema(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	require.NoError(t, st.Set(ctx, ns, "long_term", []byte("{broken")))
	mem := NewLongTermMemory(st, ns)

	data, err := mem.Get(ctx)
	require.NoError(t, err)
	assert.Contains(t, data, "basic_info")
}

func TestLongTermDelete(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewLongTermMemory(st, ns, WithCacheTTL(time.Minute))

	_, err := mem.Update(ctx, map[string]any{"summary": "x"})
	require.NoError(t, err)
	require.NoError(t, mem.Delete(ctx))
	assert.Nil(t, mem.Cached())

	_, ok, err := st.Get(ctx, ns, "long_term")
	require.NoError(t, err)
	assert.False(t, ok)
}
