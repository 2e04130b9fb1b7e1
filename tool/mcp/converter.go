//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// ToolName returns the registry name for a server's tool:
// "mcp.{server}.{tool}".
func ToolName(server, toolName string) string {
	return "mcp." + server + "." + toolName
}

// mcpTool exposes one remote tool as a registry tool. Calls route through
// the manager so retry policy and connection bookkeeping stay in one
// place.
type mcpTool struct {
	manager *Manager
	server  string
	remote  string
	decl    *tool.Declaration
}

var _ tool.CallableTool = (*mcpTool)(nil)

func newMCPTool(m *Manager, server string, info ToolInfo) *mcpTool {
	decl := &tool.Declaration{
		Name:        ToolName(server, info.Name),
		Description: fmt.Sprintf("[MCP:%s] %s", server, info.Description),
		InputSchema: extractSchema(info.InputSchema),
	}
	if len(info.InputSchema) > 0 && string(info.InputSchema) != "null" {
		decl.RawInputSchema = info.InputSchema
	}
	return &mcpTool{
		manager: m,
		server:  server,
		remote:  info.Name,
		decl:    decl,
	}
}

// Declaration implements tool.Tool.
func (t *mcpTool) Declaration() *tool.Declaration { return t.decl }

// Call implements tool.CallableTool. The result is the server's text
// content; tool-level failures come back as an "Error: " prefixed string
// rather than a Go error, so the model sees them and can react.
func (t *mcpTool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	args := map[string]any{}
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &args); err != nil {
			return nil, fmt.Errorf("mcp: tool %q arguments: %w", t.decl.Name, err)
		}
	}
	return t.manager.callTool(ctx, t.server, t.remote, args)
}

// extractSchema lifts top-level properties and required names out of a
// raw inputSchema so the registry can pre-check required arguments. The
// raw schema still travels to the model verbatim.
func extractSchema(raw json.RawMessage) *tool.Schema {
	if len(raw) == 0 {
		return nil
	}
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	if len(schema.Properties) == 0 {
		return nil
	}
	out := &tool.Schema{
		Type:       "object",
		Properties: make(map[string]*tool.Schema, len(schema.Properties)),
		Required:   schema.Required,
	}
	for name, prop := range schema.Properties {
		typ := prop.Type
		if typ == "" {
			typ = "string"
		}
		out.Properties[name] = &tool.Schema{Type: typ, Description: prop.Description}
	}
	return out
}

// resultText flattens a tool result into one string: text items joined by
// newlines, an "Error: " prefix when the server flagged failure, and a
// hard cap at maxResultBytes so one oversized result cannot blow the
// model context.
func resultText(res *ToolResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		text = "Error: " + text
	}
	if len(text) > maxResultBytes {
		text = text[:maxResultBytes] + truncationMarker
	}
	return text
}
