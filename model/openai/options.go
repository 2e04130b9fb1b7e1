//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
)

// ChatRequestCallbackFunc is invoked with the wire request right before it
// is sent, useful for request inspection and tests.
type ChatRequestCallbackFunc func(
	ctx context.Context,
	chatRequest *openai.ChatCompletionNewParams,
)

// ChatResponseCallbackFunc is invoked with the raw completion after a
// successful call.
type ChatResponseCallbackFunc func(
	ctx context.Context,
	chatRequest *openai.ChatCompletionNewParams,
	chatResponse *openai.ChatCompletion,
)

// options contains configuration options for creating a Model.
type options struct {
	// APIKey authenticates against the API. Optional, the client falls back
	// to OPENAI_API_KEY.
	APIKey string
	// BaseURL points the client at an OpenAI-compatible endpoint. Optional.
	BaseURL string
	// OpenAIOptions are passed through to the underlying client.
	OpenAIOptions []openaiopt.RequestOption
	// ExtraFields are merged into every request body.
	ExtraFields map[string]any
	// ChatRequestCallback is called before each request.
	ChatRequestCallback ChatRequestCallbackFunc
	// ChatResponseCallback is called after each successful response.
	ChatResponseCallback ChatResponseCallbackFunc
}

var defaultOptions = options{}

// Option is a function that configures an OpenAI model.
type Option func(*options)

// WithAPIKey sets the API key for the OpenAI client.
func WithAPIKey(key string) Option {
	return func(opts *options) {
		opts.APIKey = key
	}
}

// WithBaseURL sets the base URL, enabling OpenAI-compatible providers.
func WithBaseURL(url string) Option {
	return func(opts *options) {
		opts.BaseURL = url
	}
}

// WithOpenAIOptions appends request options for the underlying client.
func WithOpenAIOptions(openaiOpts ...openaiopt.RequestOption) Option {
	return func(opts *options) {
		opts.OpenAIOptions = append(opts.OpenAIOptions, openaiOpts...)
	}
}

// WithExtraFields sets extra fields merged into every request body, e.g.
// provider-specific switches not covered by the standard parameters.
func WithExtraFields(fields map[string]any) Option {
	return func(opts *options) {
		opts.ExtraFields = fields
	}
}

// WithChatRequestCallback sets the request callback.
func WithChatRequestCallback(fn ChatRequestCallbackFunc) Option {
	return func(opts *options) {
		opts.ChatRequestCallback = fn
	}
}

// WithChatResponseCallback sets the response callback.
func WithChatResponseCallback(fn ChatResponseCallbackFunc) Option {
	return func(opts *options) {
		opts.ChatResponseCallback = fn
	}
}
