//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"

	"google.golang.org/genai"
)

// ChatRequestCallbackFunc is invoked with the converted request right before
// it is sent.
type ChatRequestCallbackFunc func(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
)

// ChatResponseCallbackFunc is invoked with the raw response after a
// successful call.
type ChatResponseCallbackFunc func(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	response *genai.GenerateContentResponse,
)

// options contains configuration options for creating a Model.
type options struct {
	// clientConfig for building the genai client. nil uses the genai
	// defaults, which read credentials from the environment.
	clientConfig *genai.ClientConfig
	// chatRequestCallback is called before each request.
	chatRequestCallback ChatRequestCallbackFunc
	// chatResponseCallback is called after each successful response.
	chatResponseCallback ChatResponseCallbackFunc
}

var defaultOptions = options{}

// Option is a function that configures a Gemini model.
type Option func(*options)

// WithClientConfig sets the ClientConfig used for client initialization.
func WithClientConfig(c *genai.ClientConfig) Option {
	return func(opts *options) {
		opts.clientConfig = c
	}
}

// WithChatRequestCallback sets the request callback.
func WithChatRequestCallback(fn ChatRequestCallbackFunc) Option {
	return func(opts *options) {
		opts.chatRequestCallback = fn
	}
}

// WithChatResponseCallback sets the response callback.
func WithChatResponseCallback(fn ChatResponseCallbackFunc) Option {
	return func(opts *options) {
		opts.chatResponseCallback = fn
	}
}
