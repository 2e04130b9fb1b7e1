//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini model implementation.
package gemini

import (
	"context"

	"google.golang.org/genai"
)

// Client is the GenAI client surface this adapter depends on. It exists so
// tests can substitute a fake without a real API client.
type Client interface {
	Models() Models
}

// Models provides access to the content generation API.
type Models interface {
	// GenerateContent generates content for the given model, contents, and
	// configuration.
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// clientWrapper adapts *genai.Client to the Client interface.
type clientWrapper struct {
	client *genai.Client
}

// Models implements Client.
func (c *clientWrapper) Models() Models {
	return &modelsWrapper{models: c.client.Models}
}

// modelsWrapper adapts *genai.Models to the Models interface.
type modelsWrapper struct {
	models *genai.Models
}

// GenerateContent implements Models.
func (m *modelsWrapper) GenerateContent(ctx context.Context, model string, contents []*genai.Content,
	config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.models.GenerateContent(ctx, model, contents, config)
}
