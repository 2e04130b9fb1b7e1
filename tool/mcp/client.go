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
	"sync/atomic"
)

// Request is a JSON-RPC 2.0 request. A zero ID marks a notification and
// is omitted from the wire form.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a failed JSON-RPC response. It signals
// a protocol-level failure and is never retried.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// Implementation identifies one party of the handshake.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolInfo describes a tool advertised by an MCP server. InputSchema is
// kept verbatim so nested schemas survive the trip to the model intact.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content is one item of a tools/call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the payload of a tools/call response. IsError marks a
// tool-level failure; the call itself succeeded.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []ToolInfo `json:"tools"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Client speaks MCP to a single server over a Transport. Request ids
// increment from 1; concurrent calls are safe when the transport is.
type Client struct {
	transport  Transport
	nextID     atomic.Int64
	serverInfo Implementation
	protocol   string
}

// NewClient wraps transport. Call Connect before anything else.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// Connect starts the transport and performs the MCP handshake:
// initialize, then the notifications/initialized notification.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Start(ctx); err != nil {
		return err
	}
	raw, err := c.call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo,
	})
	if err != nil {
		return err
	}
	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("mcp: initialize result: %w", err)
	}
	c.serverInfo = res.ServerInfo
	c.protocol = res.ProtocolVersion
	return c.transport.Notify(ctx, "notifications/initialized", nil)
}

// ServerInfo returns the identity the server reported during Connect.
func (c *Client) ServerInfo() Implementation { return c.serverInfo }

// ProtocolVersion returns the revision the server committed to.
func (c *Client) ProtocolVersion() string { return c.protocol }

// ListTools discovers the server's tools, following pagination cursors
// until the last page. Servers returning a bare array instead of the
// {tools: [...]} wrapper are tolerated; a null result means no tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var tools []ToolInfo
	cursor := ""
	for {
		var params any
		if cursor != "" {
			params = listToolsParams{Cursor: cursor}
		}
		raw, err := c.call(ctx, "tools/list", params)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return tools, nil
		}
		var res listToolsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			var bare []ToolInfo
			if bareErr := json.Unmarshal(raw, &bare); bareErr != nil {
				return nil, fmt.Errorf("mcp: tools/list result: %w", err)
			}
			return append(tools, bare...), nil
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool invokes a tool by its server-side name. A nil args map is sent
// as an empty object.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := c.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mcp: tools/call result: %w", err)
	}
	return &res, nil
}

// Close shuts the transport down.
func (c *Client) Close() error { return c.transport.Close() }

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := &Request{
		JSONRPC: jsonRPCVersion,
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
