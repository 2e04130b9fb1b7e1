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
	"encoding/json"
	"strings"

	"trpc.group/trpc-go/trpc-botagent-go/log"
)

// Extractor distills structured memory from buffered conversations.
//
// Extract receives the buffered messages and the user's current long-term
// memory and returns a delta to be deep-merged into it. An empty delta
// means nothing was extracted.
type Extractor interface {
	Extract(ctx context.Context, conversations []Message, current map[string]any) (map[string]any, error)
}

// PromptFunc calls a language model with a plain prompt and returns its
// text output.
type PromptFunc func(ctx context.Context, prompt string) (string, error)

// DefaultExtractionPrompt is the built-in extraction prompt. It must keep
// the {current_memory} and {conversations} placeholders.
const DefaultExtractionPrompt = `你是一个记忆提取助手。请从以下对话中提取关于用户的结构化信息。

规则：
1. 只提取用户自己说的信息，不要把 AI 助手的信息当作用户的
2. 不要推测或编造，只提取明确提到的信息
3. 如果没有新信息，对应字段留空或返回空对象
4. 输出严格的 JSON 格式

当前已有的用户档案：
{current_memory}

待提取的对话：
{conversations}

请提取以下字段（只返回有新信息的字段）：
{
  "basic_info": {"age": null, "gender": null, "location": null, "occupation": null},
  "personality": {"traits": [], "values": []},
  "life_context": {"concerns": [], "goals": [], "recent_events": []},
  "interests": [],
  "summary": ""
}

只返回 JSON，不要其他文字：`

// LLMExtractor extracts memory with a language model. Model failures are
// logged and yield an empty delta rather than an error, so a flaky model
// never blocks the conversation.
type LLMExtractor struct {
	llm      PromptFunc
	template string
}

// LLMExtractorOption configures an LLMExtractor.
type LLMExtractorOption func(*LLMExtractor)

// WithPromptTemplate overrides the extraction prompt template. The
// template must contain {current_memory} and {conversations} placeholders.
func WithPromptTemplate(template string) LLMExtractorOption {
	return func(e *LLMExtractor) {
		e.template = template
	}
}

// NewLLMExtractor creates an extractor backed by the given model call.
func NewLLMExtractor(llm PromptFunc, opts ...LLMExtractorOption) *LLMExtractor {
	e := &LLMExtractor{llm: llm, template: DefaultExtractionPrompt}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, conversations []Message, current map[string]any) (map[string]any, error) {
	if len(conversations) == 0 {
		return map[string]any{}, nil
	}
	memoryText, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		memoryText = []byte("{}")
	}
	prompt := strings.NewReplacer(
		"{current_memory}", string(memoryText),
		"{conversations}", formatConversations(conversations),
	).Replace(e.template)

	response, err := e.llm(ctx, prompt)
	if err != nil {
		log.Errorf("Memory extraction failed: %v", err)
		return map[string]any{}, nil
	}
	return parseJSONResponse(response), nil
}

// formatConversations renders buffered messages as labeled lines.
func formatConversations(conversations []Message) string {
	lines := make([]string, 0, len(conversations))
	for _, msg := range conversations {
		label := "助手"
		if msg.Role == "user" {
			label = "用户"
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// parseJSONResponse parses a JSON object from model output, tolerating
// code fences and surrounding prose. Unparseable output yields an empty
// map.
func parseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil && result != nil {
		return result
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var embedded map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &embedded); err == nil && embedded != nil {
			return embedded
		}
	}
	return map[string]any{}
}
