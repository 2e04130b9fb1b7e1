//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/model"
)

func successResult(output string) *HandoffResult {
	return &HandoffResult{Output: output, Status: StatusSuccess}
}

func TestIdempotencyCacheReplaysResult(t *testing.T) {
	cache := NewIdempotencyCache(0)
	var runs int32
	fn := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		return successResult("done"), nil
	}

	first, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "done", first.Output)

	second, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "done", second.Output)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, 1, cache.Len())
}

func TestIdempotencyCacheEmptyKeyBypasses(t *testing.T) {
	cache := NewIdempotencyCache(0)
	var runs int32
	fn := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		return successResult("x"), nil
	}

	for i := 0; i < 3; i++ {
		res, err := cache.Do("", fn)
		require.NoError(t, err)
		assert.False(t, res.CacheHit)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&runs))
	assert.Equal(t, 0, cache.Len())
}

func TestIdempotencyCacheOnlySuccessStored(t *testing.T) {
	cache := NewIdempotencyCache(0)
	var runs int32
	failing := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		return &HandoffResult{
			Status: StatusError,
			Error:  NewHandoffError(CodeToolError, "boom"),
		}, nil
	}

	first, err := cache.Do("req-1", failing)
	require.NoError(t, err)
	assert.Equal(t, StatusError, first.Status)

	// The failure was not cached, so the retry executes again.
	_, err = cache.Do("req-1", failing)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Equal(t, 0, cache.Len())
}

func TestIdempotencyCacheErrorNotStored(t *testing.T) {
	cache := NewIdempotencyCache(0)
	var runs int32
	fn := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		return nil, errors.New("transport down")
	}

	_, err := cache.Do("req-1", fn)
	require.Error(t, err)
	_, err = cache.Do("req-1", fn)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestIdempotencyCacheTTLExpiry(t *testing.T) {
	cache := NewIdempotencyCache(20 * time.Millisecond)
	var runs int32
	fn := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		return successResult("done"), nil
	}

	_, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, cache.Len())

	res, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestIdempotencyCacheSingleflight(t *testing.T) {
	cache := NewIdempotencyCache(0)
	var runs int32
	fn := func() (*HandoffResult, error) {
		atomic.AddInt32(&runs, 1)
		time.Sleep(30 * time.Millisecond)
		return successResult("done"), nil
	}

	const callers = 8
	results := make([]*HandoffResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Do("req-1", fn)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	executors := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "done", res.Output)
		if !res.CacheHit {
			executors++
		}
	}
	// Exactly one caller ran fn; everyone else shared or replayed it.
	assert.Equal(t, 1, executors)
}

func TestIdempotencyCacheCopiesAreIsolated(t *testing.T) {
	cache := NewIdempotencyCache(0)
	fn := func() (*HandoffResult, error) { return successResult("original"), nil }

	first, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	first.Output = "mutated"

	second, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "original", second.Output)
}

func TestIdempotencyCachePointerFieldsAreIsolated(t *testing.T) {
	cache := NewIdempotencyCache(0)
	fn := func() (*HandoffResult, error) {
		return &HandoffResult{
			Output: "done",
			Status: StatusSuccess,
			Usage:  &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			ReturnContext: &HandoffContext{
				Messages: []HandoffMessage{{Role: "assistant", Content: "done"}},
				Metadata: map[string]string{"topic": "billing"},
			},
		}, nil
	}

	first, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	// The executing caller's mutations must not reach the cached copy.
	first.Usage.TotalTokens = 999
	first.ReturnContext.Messages[0].Content = "mutated"
	first.ReturnContext.Metadata["topic"] = "mutated"

	second, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	assert.Equal(t, 15, second.Usage.TotalTokens)
	assert.Equal(t, "done", second.ReturnContext.Messages[0].Content)
	assert.Equal(t, "billing", second.ReturnContext.Metadata["topic"])

	// Replayed copies are isolated from each other too.
	second.Usage.TotalTokens = 777
	third, err := cache.Do("req-1", fn)
	require.NoError(t, err)
	assert.Equal(t, 15, third.Usage.TotalTokens)
	assert.NotSame(t, second.Usage, third.Usage)
	assert.NotSame(t, second.ReturnContext, third.ReturnContext)
}
