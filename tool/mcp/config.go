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
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// TransportType selects how a server is reached.
type TransportType string

const (
	// TransportStdio spawns the server as a child process speaking
	// newline-delimited JSON-RPC. This is the default.
	TransportStdio TransportType = "stdio"
	// TransportHTTP posts each request to the server's endpoint.
	TransportHTTP TransportType = "http"
	// TransportInProcess serves requests from an in-process handler,
	// supplied through Manager.AddServerWithTransport.
	TransportInProcess TransportType = "inprocess"
)

// FilterConfig selects which of a server's tools are imported. Patterns
// are doublestar globs matched against the original (unprefixed) tool
// name. Blocked wins over allowed; an empty Allowed list allows
// everything.
type FilterConfig struct {
	Allowed []string `json:"allowed,omitempty"`
	Blocked []string `json:"blocked,omitempty"`
}

// Allows reports whether the tool named name passes the filter. A nil
// filter allows everything.
func (f *FilterConfig) Allows(name string) bool {
	if f == nil {
		return true
	}
	for _, pattern := range f.Blocked {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return false
		}
	}
	if len(f.Allowed) == 0 {
		return true
	}
	for _, pattern := range f.Allowed {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	// Name identifies the server; imported tools are registered under
	// "mcp.{Name}.{tool}".
	Name string `json:"name"`
	// Transport selects the connection type. Empty defaults to stdio.
	Transport TransportType `json:"transport,omitempty"`
	// URL is the endpoint for http transports.
	URL string `json:"url,omitempty"`
	// Command and Args spawn the server for stdio transports.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	// Env is added to the child process environment (stdio only).
	Env map[string]string `json:"env,omitempty"`
	// Headers are sent with every request (http only).
	Headers map[string]string `json:"headers,omitempty"`
	// Enabled gates the server; nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`
	// ToolFilter selects which discovered tools are imported.
	ToolFilter *FilterConfig `json:"toolFilter,omitempty"`
	// MaxTools caps the number of imported tools after filtering, in
	// server list order. Zero means no cap.
	MaxTools int `json:"maxTools,omitempty"`
	// RequestTimeout bounds each request. Zero defaults to 30s.
	RequestTimeout time.Duration `json:"requestTimeout,omitempty"`
}

func (c ServerConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// withDefaults returns a copy with the transport and timeout defaults
// filled in.
func (c ServerConfig) withDefaults() ServerConfig {
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}
