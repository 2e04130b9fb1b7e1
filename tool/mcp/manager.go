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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// Option configures a Manager.
type Option func(*Manager)

// WithMaxRetries sets how many times a failed tool call is retried after
// the first attempt. Only transport-level failures are retried; JSON-RPC
// errors and tool-level isError results never are.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithRegistry binds the registry that imported tools are mirrored into,
// equivalent to calling InjectTools before any server is added.
func WithRegistry(registry *tool.Registry) Option {
	return func(m *Manager) { m.registry = registry }
}

// Manager owns a set of MCP server connections and mirrors their tools
// into a tool.Registry. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	maxRetries int
	registry   *tool.Registry
	injected   []string
	servers    map[string]*serverConn
	order      []string
}

// serverConn tracks one connected server. client never changes after
// construction; tools is guarded by the manager's mutex.
type serverConn struct {
	cfg    ServerConfig
	client *Client
	tools  []*mcpTool
}

// NewManager creates a manager with no connections.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxRetries: defaultMaxRetries,
		servers:    make(map[string]*serverConn),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddServer connects to the configured server and imports its tools:
// connect, list, filter, cap, wrap, register. Disabled configs are
// skipped without error. In-process servers carry their handler in code,
// not config, so they go through AddServerWithTransport.
func (m *Manager) AddServer(ctx context.Context, cfg ServerConfig) error {
	cfg = cfg.withDefaults()
	var tr Transport
	switch cfg.Transport {
	case TransportHTTP:
		tr = NewHTTPTransport(cfg.URL,
			WithHTTPHeaders(cfg.Headers),
			WithHTTPTimeout(cfg.RequestTimeout))
	case TransportStdio:
		tr = NewStdioTransport(cfg.Command, cfg.Args,
			WithStdioEnv(cfg.Env),
			WithStdioTimeout(cfg.RequestTimeout))
	case TransportInProcess:
		return fmt.Errorf("mcp: in-process server %q requires AddServerWithTransport", cfg.Name)
	default:
		return fmt.Errorf("mcp: unsupported transport: %q", cfg.Transport)
	}
	return m.AddServerWithTransport(ctx, cfg, tr)
}

// AddServerWithTransport connects through a caller-supplied transport.
// In-process servers and tests use this entry point.
func (m *Manager) AddServerWithTransport(ctx context.Context, cfg ServerConfig, tr Transport) error {
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return errors.New("mcp: server config requires a name")
	}
	if !cfg.enabled() {
		log.Infof("MCP server %q disabled, skipping", cfg.Name)
		return nil
	}
	m.mu.Lock()
	_, exists := m.servers[cfg.Name]
	m.mu.Unlock()
	if exists {
		return fmt.Errorf("mcp: server %q already added", cfg.Name)
	}

	client := NewClient(tr)
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return err
	}
	infos, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return err
	}
	wrapped, err := m.wrapTools(cfg, infos)
	if err != nil {
		_ = client.Close()
		return err
	}

	m.mu.Lock()
	if _, exists := m.servers[cfg.Name]; exists {
		m.mu.Unlock()
		_ = client.Close()
		return fmt.Errorf("mcp: server %q already added", cfg.Name)
	}
	m.servers[cfg.Name] = &serverConn{cfg: cfg, client: client, tools: wrapped}
	m.order = append(m.order, cfg.Name)
	m.registerLocked(wrapped)
	m.mu.Unlock()

	log.Infof("Added MCP server %q with %d tools", cfg.Name, len(wrapped))
	return nil
}

// RemoveServer disconnects name and unregisters exactly the tools it
// added.
func (m *Manager) RemoveServer(name string) error {
	m.mu.Lock()
	conn, ok := m.servers[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("mcp: server %q not found", name)
	}
	delete(m.servers, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.unregisterLocked(conn.tools)
	m.mu.Unlock()
	return conn.client.Close()
}

// InjectTools mirrors every imported tool into registry. Re-injection is
// idempotent: previously injected names are removed first, so refreshed
// tool sets never leave stale entries behind. Later AddServer, Refresh,
// and RemoveServer calls keep this registry in sync.
func (m *Manager) InjectTools(registry *tool.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeInjectedLocked()
	m.registry = registry
	for _, name := range m.order {
		m.registerLocked(m.servers[name].tools)
	}
}

// RemoveTools removes exactly the names this manager injected, leaving
// every other registration untouched, and unbinds the registry.
func (m *Manager) RemoveTools() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeInjectedLocked()
	m.registry = nil
}

// Refresh re-discovers tools for the named servers (all when none are
// given) and reconciles the registry: new tools appear, vanished ones
// drop. Unknown names are skipped, matching RemoveServer's bookkeeping
// rather than failing a batch.
func (m *Manager) Refresh(ctx context.Context, names ...string) error {
	m.mu.Lock()
	if len(names) == 0 {
		names = append([]string(nil), m.order...)
	}
	conns := make([]*serverConn, 0, len(names))
	for _, name := range names {
		if conn, ok := m.servers[name]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		infos, err := conn.client.ListTools(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("mcp: refresh %s: %w", conn.cfg.Name, err))
			continue
		}
		wrapped, err := m.wrapTools(conn.cfg, infos)
		if err != nil {
			errs = append(errs, fmt.Errorf("mcp: refresh %s: %w", conn.cfg.Name, err))
			continue
		}
		m.mu.Lock()
		m.unregisterLocked(conn.tools)
		conn.tools = wrapped
		m.registerLocked(wrapped)
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// DisconnectAll closes every connection and unregisters everything. The
// bound registry stays bound so a later AddServer re-populates it.
func (m *Manager) DisconnectAll() error {
	m.mu.Lock()
	conns := make([]*serverConn, 0, len(m.order))
	for _, name := range m.order {
		conns = append(conns, m.servers[name])
	}
	m.servers = make(map[string]*serverConn)
	m.order = nil
	m.removeInjectedLocked()
	m.mu.Unlock()

	var failures []string
	for _, conn := range conns {
		if err := conn.client.Close(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", conn.cfg.Name, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("mcp: disconnect errors: %s", strings.Join(failures, "; "))
	}
	return nil
}

// Servers returns connected server names in add order.
func (m *Manager) Servers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Tools returns the registry names imported from server name, in
// discovery order. Unknown servers return nil.
func (m *Manager) Tools(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.servers[name]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(conn.tools))
	for _, t := range conn.tools {
		names = append(names, t.decl.Name)
	}
	return names
}

// wrapTools filters, caps, and wraps discovered tools in server order. A
// server advertising the same tool name twice is rejected: both would wrap
// to the same registry name and one would silently shadow the other.
func (m *Manager) wrapTools(cfg ServerConfig, infos []ToolInfo) ([]*mcpTool, error) {
	wrapped := make([]*mcpTool, 0, len(infos))
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		if seen[info.Name] {
			return nil, fmt.Errorf("mcp: server %q advertises duplicate tool %q", cfg.Name, info.Name)
		}
		seen[info.Name] = true
		if !cfg.ToolFilter.Allows(info.Name) {
			continue
		}
		if cfg.MaxTools > 0 && len(wrapped) >= cfg.MaxTools {
			continue
		}
		wrapped = append(wrapped, newMCPTool(m, cfg.Name, info))
	}
	return wrapped, nil
}

// registerLocked mirrors tools into the bound registry. Callers hold m.mu.
func (m *Manager) registerLocked(tools []*mcpTool) {
	if m.registry == nil {
		return
	}
	for _, t := range tools {
		m.registry.Register(t)
		m.injected = append(m.injected, t.decl.Name)
	}
}

// unregisterLocked removes tools from the bound registry and from the
// injected bookkeeping. Callers hold m.mu.
func (m *Manager) unregisterLocked(tools []*mcpTool) {
	if m.registry == nil {
		return
	}
	drop := make(map[string]bool, len(tools))
	for _, t := range tools {
		drop[t.decl.Name] = true
		m.registry.Remove(t.decl.Name)
	}
	kept := m.injected[:0]
	for _, name := range m.injected {
		if !drop[name] {
			kept = append(kept, name)
		}
	}
	m.injected = kept
}

// removeInjectedLocked clears every injected registration. Callers hold
// m.mu.
func (m *Manager) removeInjectedLocked() {
	if m.registry != nil {
		for _, name := range m.injected {
			m.registry.Remove(name)
		}
	}
	m.injected = nil
}

// callTool invokes a remote tool with retry: transport-level failures
// back off 0.1s doubling per attempt; everything else returns
// immediately.
func (m *Manager) callTool(ctx context.Context, server, remote string, args map[string]any) (string, error) {
	m.mu.Lock()
	conn, ok := m.servers[server]
	maxRetries := m.maxRetries
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("mcp: server %q not found", server)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := 100 * time.Millisecond << (attempt - 1)
			log.Debugf("MCP call %s.%s retry %d/%d after %s: %v",
				server, remote, attempt, maxRetries, backoff, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		res, err := conn.client.CallTool(ctx, remote, args)
		if err != nil {
			if IsRetryable(err) {
				lastErr = err
				continue
			}
			return "", err
		}
		return resultText(res), nil
	}
	return "", fmt.Errorf("mcp: call %s.%s failed after %d retries: %w",
		server, remote, maxRetries, lastErr)
}
