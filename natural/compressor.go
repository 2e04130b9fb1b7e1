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
	"strings"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// SummarizeFunc condenses old conversation history into one paragraph.
// Usually backed by a cheap model.
type SummarizeFunc func(ctx context.Context, msgs []model.Message) (string, error)

// EstimateTokensFunc overrides the built-in token estimator.
type EstimateTokensFunc func(msgs []model.Message) int

// CompressorConfig bounds the context compressor.
type CompressorConfig struct {
	// WindowSize is how many recent messages survive verbatim. Default 6.
	WindowSize int
	// TokenThreshold is the estimated token count that triggers
	// compression. Default 6000.
	TokenThreshold int
	// SummaryVersion tags summaries and their cache key, so changing the
	// summarizer invalidates old cache entries. Default "v1".
	SummaryVersion string
	// EstimateTokens overrides the default chars/2.7 estimator.
	EstimateTokens EstimateTokensFunc
}

// DefaultCompressorConfig returns the stock configuration.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{WindowSize: 6, TokenThreshold: 6000, SummaryVersion: "v1"}
}

// Compressor replaces the head of an oversized history with a single
// summary system message, keeping the most recent window verbatim. The
// summary is cached in working memory so one session summarizes at most
// once per version.
type Compressor struct {
	config    CompressorConfig
	summarize SummarizeFunc
}

// NewCompressor creates a compressor. summarize must be non-nil.
func NewCompressor(summarize SummarizeFunc, config CompressorConfig) *Compressor {
	if config.WindowSize <= 0 {
		config.WindowSize = 6
	}
	if config.TokenThreshold <= 0 {
		config.TokenThreshold = 6000
	}
	if config.SummaryVersion == "" {
		config.SummaryVersion = "v1"
	}
	return &Compressor{config: config, summarize: summarize}
}

func (c *Compressor) cacheKey() string {
	return "sdk.context_summary:" + c.config.SummaryVersion
}

// Compress returns history unchanged when it fits, otherwise the summary
// message plus the recent window. Summarizer failures are logged and leave
// the history unchanged; compression is never worth failing a turn.
func (c *Compressor) Compress(ctx context.Context, history []model.Message, working *memory.WorkingMemory) []model.Message {
	if len(history) == 0 {
		return history
	}
	if c.estimateTokens(history) < c.config.TokenThreshold {
		return history
	}

	if cached := working.GetString(c.cacheKey()); cached != "" {
		return c.buildCompressed(cached, history)
	}

	splitIdx := len(history) - c.config.WindowSize
	if splitIdx <= 0 {
		return history
	}
	summary, err := c.summarize(ctx, history[:splitIdx])
	if err != nil {
		log.Warnf("natural: context summarization failed, keeping full history: %v", err)
		return history
	}
	working.Set(c.cacheKey(), summary)
	return c.buildCompressed(summary, history)
}

func (c *Compressor) buildCompressed(summary string, history []model.Message) []model.Message {
	tagged := "[sdk.summary:" + c.config.SummaryVersion + "] " + summary
	recentStart := len(history) - c.config.WindowSize
	if recentStart < 0 {
		recentStart = 0
	}
	result := make([]model.Message, 0, 1+len(history)-recentStart)
	result = append(result, model.NewSystemMessage(tagged))
	result = append(result, history[recentStart:]...)
	return result
}

func (c *Compressor) estimateTokens(history []model.Message) int {
	if c.config.EstimateTokens != nil {
		return c.config.EstimateTokens(history)
	}
	return EstimateTokens(history)
}

// EstimateTokens approximates the token count of a message list as
// chars/2.7, weighting code blocks 1.5x since they tokenize denser.
func EstimateTokens(history []model.Message) int {
	total := 0.0
	for _, msg := range history {
		chars := float64(len([]rune(msg.Content)))
		if strings.Contains(msg.Content, "```") {
			chars *= 1.5
		}
		total += chars
	}
	return int(total / 2.7)
}
