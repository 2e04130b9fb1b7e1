//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp implements a Model Context Protocol client: JSON-RPC 2.0
// over HTTP, stdio, or in-process transports, plus a Manager that imports
// discovered server tools into a tool.Registry under "mcp.{server}.{tool}"
// names.
//
// Typical usage:
//
//	mgr := mcp.NewManager()
//	err := mgr.AddServer(ctx, mcp.ServerConfig{
//		Name:      "fs",
//		Transport: mcp.TransportHTTP,
//		URL:       "http://localhost:3000/mcp",
//	})
//	mgr.InjectTools(registry)
//	// ... agent loop dispatches mcp.fs.* tools transparently ...
//	err = mgr.DisconnectAll()
package mcp

import "time"

const (
	// protocolVersion is the MCP revision this client speaks.
	protocolVersion = "2024-11-05"
	// jsonRPCVersion tags every request on the wire.
	jsonRPCVersion = "2.0"
)

// clientInfo identifies this client during the initialize handshake.
var clientInfo = Implementation{
	Name:    "trpc-botagent-go",
	Version: "1.0.0",
}

const (
	// defaultRequestTimeout bounds a single request on any transport.
	defaultRequestTimeout = 30 * time.Second
	// defaultMaxRetries is how many times a transport-level failure is
	// retried after the first attempt.
	defaultMaxRetries = 3

	// maxErrorBody caps how much of an HTTP error body is read.
	maxErrorBody = 128 << 10
	// previewLimit truncates bodies quoted in error messages.
	previewLimit = 512
	// maxResultBytes caps a flattened tool result fed back to the model.
	maxResultBytes = 128 << 10
	// truncationMarker terminates results cut at maxResultBytes.
	truncationMarker = "... [truncated]"
	// maxLineBytes caps a single stdio response line.
	maxLineBytes = 4 << 20
	// stdioShutdownWait bounds graceful child shutdown before kill.
	stdioShutdownWait = 5 * time.Second
)
