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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// countingSummarizer returns a fixed summary and counts invocations.
type countingSummarizer struct {
	calls   int
	summary string
	err     error
}

func (s *countingSummarizer) fn(_ context.Context, msgs []model.Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func longHistory(n int) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs = append(msgs, model.Message{Role: role, Content: strings.Repeat("聊", 30)})
	}
	return msgs
}

func TestCompressorBelowThresholdUnchanged(t *testing.T) {
	sum := &countingSummarizer{summary: "sum"}
	c := NewCompressor(sum.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 100000})
	history := longHistory(10)

	got := c.Compress(context.Background(), history, memory.NewWorkingMemory())
	assert.Equal(t, history, got)
	assert.Zero(t, sum.calls)
}

func TestCompressorSummarizesHead(t *testing.T) {
	sum := &countingSummarizer{summary: "早些时候聊了旅行计划"}
	c := NewCompressor(sum.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 10})
	history := longHistory(6)

	got := c.Compress(context.Background(), history, memory.NewWorkingMemory())
	require.Len(t, got, 3, "summary message plus the recent window")
	assert.Equal(t, model.RoleSystem, got[0].Role)
	assert.Equal(t, "[sdk.summary:v1] 早些时候聊了旅行计划", got[0].Content)
	assert.Equal(t, history[4:], got[1:])
	assert.Equal(t, 1, sum.calls)
}

func TestCompressorCacheHit(t *testing.T) {
	sum := &countingSummarizer{summary: "sum"}
	c := NewCompressor(sum.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 10})
	working := memory.NewWorkingMemory()
	history := longHistory(6)

	first := c.Compress(context.Background(), history, working)
	second := c.Compress(context.Background(), history, working)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sum.calls, "summary is cached per session")
}

func TestCompressorVersionChangeInvalidates(t *testing.T) {
	working := memory.NewWorkingMemory()
	history := longHistory(6)

	sumV1 := &countingSummarizer{summary: "v1 summary"}
	c1 := NewCompressor(sumV1.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 10, SummaryVersion: "v1"})
	c1.Compress(context.Background(), history, working)

	sumV2 := &countingSummarizer{summary: "v2 summary"}
	c2 := NewCompressor(sumV2.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 10, SummaryVersion: "v2"})
	got := c2.Compress(context.Background(), history, working)

	assert.Equal(t, 1, sumV2.calls, "v1 cache entry does not serve v2")
	assert.Equal(t, "[sdk.summary:v2] v2 summary", got[0].Content)
}

func TestCompressorSummarizeErrorKeepsHistory(t *testing.T) {
	sum := &countingSummarizer{err: errors.New("model down")}
	c := NewCompressor(sum.fn, CompressorConfig{WindowSize: 2, TokenThreshold: 10})
	history := longHistory(6)

	got := c.Compress(context.Background(), history, memory.NewWorkingMemory())
	assert.Equal(t, history, got, "compression failures never lose history")
}

func TestCompressorShortHistoryNotSplit(t *testing.T) {
	sum := &countingSummarizer{summary: "sum"}
	c := NewCompressor(sum.fn, CompressorConfig{WindowSize: 10, TokenThreshold: 10})
	history := longHistory(4)

	got := c.Compress(context.Background(), history, memory.NewWorkingMemory())
	assert.Equal(t, history, got, "nothing older than the window to summarize")
	assert.Zero(t, sum.calls)
}

func TestCompressorCustomEstimator(t *testing.T) {
	sum := &countingSummarizer{summary: "sum"}
	c := NewCompressor(sum.fn, CompressorConfig{
		WindowSize:     2,
		TokenThreshold: 10,
		EstimateTokens: func([]model.Message) int { return 1 },
	})
	got := c.Compress(context.Background(), longHistory(6), memory.NewWorkingMemory())
	assert.Len(t, got, 6, "custom estimator keeps the history under threshold")
}

func TestEstimateTokensWeighsCodeBlocks(t *testing.T) {
	plain := []model.Message{model.NewUserMessage(strings.Repeat("a", 270))}
	code := []model.Message{model.NewUserMessage("```go\n" + strings.Repeat("a", 264) + "\n```")}
	assert.Equal(t, 100, EstimateTokens(plain))
	assert.Greater(t, EstimateTokens(code), EstimateTokens(plain))
}
