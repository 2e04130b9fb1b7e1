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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// Model implements the model.Model interface for the Gemini API.
type Model struct {
	client               Client
	name                 string
	chatRequestCallback  ChatRequestCallbackFunc
	chatResponseCallback ChatResponseCallbackFunc
}

var _ model.Model = (*Model)(nil)

// New creates a new Gemini model adapter. Credentials resolve through the
// client config, falling back to the GOOGLE_API_KEY / GEMINI_API_KEY
// environment variables.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	client, err := genai.NewClient(ctx, o.clientConfig)
	if err != nil {
		return nil, err
	}
	return &Model{
		client:               &clientWrapper{client: client},
		name:                 name,
		chatRequestCallback:  o.chatRequestCallback,
		chatResponseCallback: o.chatResponseCallback,
	}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name: m.name,
	}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(
	ctx context.Context,
	request *model.Request,
) (*model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}

	contents := m.convertMessages(request.Messages)
	config := m.buildChatConfig(request)

	if m.chatRequestCallback != nil {
		m.chatRequestCallback(ctx, contents, config)
	}

	chatCompletion, err := m.client.Models().GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &model.Response{
			Object: model.ObjectTypeError,
			Error: &model.ResponseError{
				Message: err.Error(),
				Type:    model.ErrorTypeAPIError,
			},
			Timestamp: time.Now(),
		}, nil
	}

	if m.chatResponseCallback != nil {
		m.chatResponseCallback(ctx, contents, config, chatCompletion)
	}
	return m.convertResponse(chatCompletion), nil
}

// buildChatConfig converts our Request to a Gemini generation config.
// System messages become the system instruction; Gemini does not accept
// them in the contents list.
func (m *Model) buildChatConfig(request *model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Tools: m.convertTools(request.Tools),
	}

	if system := collectSystemText(request.Messages); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	// AUTO mode lets the model decide between calling tools and answering.
	if len(request.Tools) > 0 {
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}

	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		config.TopP = genai.Ptr(float32(*request.TopP))
	}
	if len(request.Stop) > 0 {
		config.StopSequences = request.Stop
	}
	return config
}

func collectSystemText(messages []model.Message) string {
	var parts []string
	for _, msg := range messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// convertMessages converts our Message format to Gemini contents. Assistant
// tool calls map to function-call parts and tool results to
// function-response parts so multi-turn tool use round-trips correctly.
func (m *Model) convertMessages(messages []model.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case model.RoleAssistant:
			content.Role = genai.RoleModel
		default: // User and tool messages both come from the user side.
			content.Role = genai.RoleUser
		}

		if msg.Role == model.RoleTool {
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolID,
					Name:     msg.ToolName,
					Response: toolResponseMap(msg.Content),
				},
			})
			result = append(result, content)
			continue
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		for _, toolCall := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(toolCall.Function.Arguments, &args); err != nil {
				args = make(map[string]any)
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   toolCall.ID,
					Name: toolCall.Function.Name,
					Args: args,
				},
			})
		}
		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

// toolResponseMap wraps a tool result into the map shape Gemini expects.
// JSON object results pass through as-is.
func toolResponseMap(content string) map[string]any {
	var response map[string]any
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return map[string]any{"result": content}
	}
	return response
}

// convertTools converts tool specifications to Gemini function declarations.
func (m *Model) convertTools(tools []model.Tool) []*genai.Tool {
	var result []*genai.Tool
	for _, t := range tools {
		result = append(result, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			}},
		})
	}
	return result
}

// convertResponse converts a Gemini response to our Response format.
func (m *Model) convertResponse(rsp *genai.GenerateContentResponse) *model.Response {
	response := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Timestamp: time.Now(),
	}
	if rsp == nil {
		return response
	}

	response.ID = rsp.ResponseID
	response.Model = rsp.ModelVersion
	if !rsp.CreateTime.IsZero() {
		response.Created = rsp.CreateTime.Unix()
	}

	message, finishReason := convertCandidates(rsp.Candidates)
	choice := model.Choice{Index: 0, Message: message}
	if finishReason != "" {
		choice.FinishReason = &finishReason
	}
	response.Choices = []model.Choice{choice}

	if usage := rsp.UsageMetadata; usage != nil {
		response.Usage = &model.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return response
}

// convertCandidates flattens candidates into a single assistant message.
func convertCandidates(candidates []*genai.Candidate) (model.Message, string) {
	var (
		textBuilder  strings.Builder
		toolCalls    []model.ToolCall
		finishReason string
	)
	for _, candidate := range candidates {
		if candidate.FinishReason != "" {
			finishReason = string(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				textBuilder.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				synthesizedID := part.FunctionCall.ID
				if synthesizedID == "" {
					// Gemini usually omits call IDs; synthesize one.
					synthesizedID = fmt.Sprintf("auto_call_%d", len(toolCalls))
				}
				toolCalls = append(toolCalls, model.ToolCall{
					ID:   synthesizedID,
					Type: "function",
					Function: model.FunctionDefinitionParam{
						Name:      part.FunctionCall.Name,
						Arguments: args,
					},
				})
			}
		}
	}
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   textBuilder.String(),
		ToolCalls: toolCalls,
	}, finishReason
}
