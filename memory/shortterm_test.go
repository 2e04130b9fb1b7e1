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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
	"trpc.group/trpc-go/trpc-botagent-go/memory/store/inmemory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

func newTestNamespace() (store.Store, store.Namespace) {
	return inmemory.New(), store.NewNamespace("bot", "user-1")
}

func TestShortTermRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewShortTermMemory(st, ns, 0)

	require.NoError(t, mem.AddMessage(ctx, "user", "hi"))
	require.NoError(t, mem.AddMessage(ctx, "assistant", "hello"))

	history, err := mem.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.NotEmpty(t, history[0].Timestamp)
	assert.Equal(t, "assistant", history[1].Role)

	count, err := mem.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestShortTermTrimsOverCapacity(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewShortTermMemory(st, ns, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, mem.AddMessage(ctx, "user", fmt.Sprintf("msg-%d", i)))
	}

	history, err := mem.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "msg-2", history[0].Content)
	assert.Equal(t, "msg-4", history[2].Content)
}

func TestShortTermSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewShortTermMemory(st, ns, 0)

	require.NoError(t, mem.AddMessage(ctx, "user", "good"))
	require.NoError(t, st.AppendList(ctx, ns, "short_term", []byte("not json")))
	require.NoError(t, mem.AddMessage(ctx, "assistant", "also good"))

	history, err := mem.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "good", history[0].Content)
	assert.Equal(t, "also good", history[1].Content)
}

func TestShortTermHistoryMessages(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewShortTermMemory(st, ns, 0)

	require.NoError(t, mem.AddMessage(ctx, "user", "hi"))
	msgs, err := mem.HistoryMessages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestShortTermClear(t *testing.T) {
	ctx := context.Background()
	st, ns := newTestNamespace()
	mem := NewShortTermMemory(st, ns, 0)

	require.NoError(t, mem.AddMessage(ctx, "user", "hi"))
	require.NoError(t, mem.Clear(ctx))
	count, err := mem.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
