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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/log"
)

// Transport moves JSON-RPC messages to and from one MCP server.
type Transport interface {
	// Start establishes the connection (spawning the child process for
	// stdio transports). Starting an already started transport is a no-op.
	Start(ctx context.Context) error
	// Send submits a request and waits for the matching response.
	Send(ctx context.Context, req *Request) (*Response, error)
	// Notify submits a notification; no response is expected.
	Notify(ctx context.Context, method string, params any) error
	// Close tears the connection down.
	Close() error
}

// TransportError is a delivery failure: the request never produced a
// JSON-RPC response. StatusCode is the HTTP status when one was received,
// 0 for network-level failures.
type TransportError struct {
	StatusCode int
	Preview    string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("mcp: http %d: %s", e.StatusCode, e.Preview)
	}
	return fmt.Sprintf("mcp: transport: %s", e.Preview)
}

// Retryable reports whether retrying the request may succeed:
// network-level failures, HTTP 5xx, and HTTP 429.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is a transport failure worth retrying.
// JSON-RPC protocol errors and tool-level failures never are.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}

// preview clips a payload for inclusion in an error message.
func preview(b []byte) string {
	if len(b) > previewLimit {
		return string(b[:previewLimit]) + "..."
	}
	return string(b)
}

// HTTPTransport posts each JSON-RPC message to a fixed endpoint.
type HTTPTransport struct {
	url     string
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPHeaders adds headers to every request.
func WithHTTPHeaders(headers map[string]string) HTTPOption {
	return func(t *HTTPTransport) { t.headers = headers }
}

// WithHTTPTimeout bounds each request round trip.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithHTTPClient substitutes the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

// NewHTTPTransport creates a transport posting to url.
func NewHTTPTransport(url string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		url:     url,
		timeout: defaultRequestTimeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start validates the endpoint. HTTP needs no persistent connection.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if t.url == "" {
		return errors.New("mcp: http transport requires a url")
	}
	return nil
}

// Send posts req and decodes the JSON-RPC response.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	body, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Preview: "undecodable response: " + preview(body)}
	}
	return &resp, nil
}

// Notify posts an id-less request and discards the body.
func (t *HTTPTransport) Notify(ctx context.Context, method string, params any) error {
	_, err := t.post(ctx, &Request{JSONRPC: jsonRPCVersion, Method: method, Params: params})
	return err
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) post(parent context.Context, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal request: %w", err)
	}
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mcp: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		// Caller cancellation propagates as-is; the per-request timeout is
		// a transport failure and stays retryable.
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, &TransportError{Preview: err.Error()}
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= http.StatusBadRequest {
		capped, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Preview: preview(capped)}
	}
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Preview: "read response: " + err.Error()}
	}
	return body, nil
}

// StdioTransport spawns the server as a child process and exchanges
// newline-delimited JSON over its stdin/stdout. A reader goroutine routes
// responses to waiting calls by request id; stderr is drained to the
// debug log.
type StdioTransport struct {
	command string
	args    []string
	env     map[string]string
	timeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[int64]chan *Response
	done    chan struct{}
	started bool
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithStdioEnv adds variables to the child process environment.
func WithStdioEnv(env map[string]string) StdioOption {
	return func(t *StdioTransport) { t.env = env }
}

// WithStdioTimeout bounds how long a call waits for its response line.
func WithStdioTimeout(d time.Duration) StdioOption {
	return func(t *StdioTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewStdioTransport creates a transport that will spawn command with args.
func NewStdioTransport(command string, args []string, opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		command: command,
		args:    args,
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start spawns the child process and begins routing its output.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	if t.command == "" {
		return errors.New("mcp: stdio transport requires a command")
	}
	cmd := exec.Command(t.command, t.args...)
	cmd.Env = os.Environ()
	for k, v := range t.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("mcp: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mcp: start %s: %w", t.command, err)
	}
	t.cmd = cmd
	t.stdin = stdin
	t.pending = make(map[int64]chan *Response)
	t.done = make(chan struct{})
	t.started = true
	go t.readLoop(stdout)
	go t.drainStderr(stderr)
	return nil
}

// Send writes one request line and waits for the response with a matching
// id, bounded by the transport timeout and ctx.
func (t *StdioTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil, errors.New("mcp: stdio transport not started")
	}
	select {
	case <-t.done:
		t.mu.Unlock()
		return nil, &TransportError{Preview: "stdio process exited"}
	default:
	}
	ch := make(chan *Response, 1)
	t.pending[req.ID] = ch
	stdin := t.stdin
	t.mu.Unlock()

	if err := writeLine(stdin, req); err != nil {
		t.forget(req.ID)
		return nil, err
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, &TransportError{Preview: "stdio process exited"}
		}
		return resp, nil
	case <-ctx.Done():
		t.forget(req.ID)
		return nil, ctx.Err()
	case <-timer.C:
		t.forget(req.ID)
		return nil, &TransportError{Preview: fmt.Sprintf("stdio read timeout after %s", t.timeout)}
	}
}

// Notify writes one id-less request line; nothing comes back.
func (t *StdioTransport) Notify(ctx context.Context, method string, params any) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return errors.New("mcp: stdio transport not started")
	}
	stdin := t.stdin
	t.mu.Unlock()
	return writeLine(stdin, &Request{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

// Close shuts the child down: close stdin, give it stdioShutdownWait to
// exit, then kill. Always reaps the process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	stdin, cmd, done := t.stdin, t.cmd, t.done
	t.mu.Unlock()

	_ = stdin.Close()
	select {
	case <-done:
	case <-time.After(stdioShutdownWait):
		_ = cmd.Process.Kill()
		<-done
	}
	if err := cmd.Wait(); err != nil {
		log.Debugf("MCP stdio %s exited: %v", t.command, err)
	}
	return nil
}

func writeLine(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mcp: marshal request: %w", err)
	}
	if _, err := w.Write(append(raw, '\n')); err != nil {
		return &TransportError{Preview: "stdio write: " + err.Error()}
	}
	return nil
}

// readLoop routes stdout lines to pending calls until the pipe closes.
// Undecodable lines and unsolicited ids are dropped. On exit every
// pending channel is closed so waiting calls fail fast.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	defer func() {
		t.mu.Lock()
		for id, ch := range t.pending {
			delete(t.pending, id)
			close(ch)
		}
		done := t.done
		t.mu.Unlock()
		close(done)
	}()
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Debugf("MCP stdio %s: dropping undecodable line: %v", t.command, err)
			continue
		}
		if resp.ID == 0 {
			continue
		}
		t.mu.Lock()
		ch := t.pending[resp.ID]
		delete(t.pending, resp.ID)
		t.mu.Unlock()
		if ch != nil {
			ch <- &resp
		}
	}
}

func (t *StdioTransport) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			log.Debugf("[MCP:stdio:%s] stderr: %s", t.command, line)
		}
	}
}

func (t *StdioTransport) forget(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// Handler serves a single JSON-RPC request in process. Notifications are
// delivered with a zero request id; their return value is discarded.
type Handler func(ctx context.Context, req *Request) *Response

// InProcessTransport serves requests from an in-process handler. It exists
// for tests and for embedding tool servers in the same binary.
type InProcessTransport struct {
	handler Handler
}

// NewInProcessTransport creates a transport backed by handler.
func NewInProcessTransport(handler Handler) *InProcessTransport {
	return &InProcessTransport{handler: handler}
}

// Start validates the handler.
func (t *InProcessTransport) Start(ctx context.Context) error {
	if t.handler == nil {
		return errors.New("mcp: in-process transport requires a handler")
	}
	return nil
}

// Send invokes the handler directly.
func (t *InProcessTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	resp := t.handler(ctx, req)
	if resp == nil {
		return nil, &TransportError{Preview: "in-process handler returned no response"}
	}
	return resp, nil
}

// Notify invokes the handler and discards the result.
func (t *InProcessTransport) Notify(ctx context.Context, method string, params any) error {
	t.handler(ctx, &Request{JSONRPC: jsonRPCVersion, Method: method, Params: params})
	return nil
}

// Close is a no-op.
func (t *InProcessTransport) Close() error { return nil }
