// Package proxy implements the MCP client side of the protocol: a Client that
// drives a remote (or in-process) MCP server over SSE, a spawned process's
// stdio, or a caller-supplied reader/writer pair, and exposes initialize/listTools/callTool/ping to whatever is
// embedding it - most commonly another MCP server acting as a gateway.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/transport"
)

// ServerConfigKind discriminates the ServerConfig sum type.
type ServerConfigKind int

const (
	ServerSSE ServerConfigKind = iota
	ServerStdio
	ServerStdioHandles
)

// ServerConfig is the tagged union `sse(url,headers) | stdio(cmd,args,cwd,env)
// | stdioHandles(reader,writer)` from the protocol.
type ServerConfig struct {
	Kind    ServerConfigKind

	URL     string
	Headers map[string]string

	Command string
	Args    []string
	Dir     string
	Env     []string

	Reader  io.Reader
	Writer  io.Writer
}

// LogHandler receives notifications/message entries the proxied server
// emits, after coalescing identical consecutive ones within a short window
// (the unspecified coalescing behaviour; this implementation uses
// 200ms).
type LogHandler func(level, loggerName string, data any)

const coalesceWindow = 200 * time.Millisecond

type pendingCall struct {
	result any
	err    error
	done   chan struct{}
}

// Client drives one remote MCP server connection.
type Client struct {
	cfg          ServerConfig
	cmd          *exec.Cmd

	stdio        *transport.Stdio
	httpClient   *http.Client
	sseBase      string

	mu           sync.Mutex
	nextID       int64
	pending      map[int64]*pendingCall

	// callSem is a size-1 semaphore enforcing at-most-one-concurrent-request:
	// only one call() can be in flight at a time, so a second caller blocks
	// until the first's response (or its own ctx) resolves rather than
	// racing it over the same connection.
	callSem      chan struct{}

	onLog        LogHandler
	lastLogMu    sync.Mutex
	lastLevel    string
	lastLogger   string
	lastDataStr  string
	lastLogAt    time.Time

	toolsMu      sync.Mutex
	toolsCached  bool
	cacheEnabled bool
	cachedTools  []map[string]any
}

// New creates a disconnected client for cfg. Call Connect before use.
func New(cfg ServerConfig, cacheTools bool) *Client {
	return &Client{
		cfg: cfg,
		pending: make(map[int64]*pendingCall),
		cacheEnabled: cacheTools,
		callSem: make(chan struct{}, 1),
	}
}

func (c *Client) OnLog(h LogHandler) { c.onLog = h }

// Connect establishes the underlying transport. For stdio, it spawns the
// target process; for stdioHandles it speaks the protocol over the given
// reader/writer pair; for sse it opens the event
// stream and waits for the initial endpoint event.
func (c *Client) Connect(ctx context.Context) error {
	switch c.cfg.Kind {
	case ServerStdio:
		cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
		cmd.Dir = c.cfg.Dir
		cmd.Env = c.cfg.Env
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("proxy: stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("proxy: stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("proxy: start %s: %w", c.cfg.Command, err)
		}
		c.cmd = cmd
		c.stdio = transport.NewStdio(stdout, stdin)
		go c.runStdio(ctx)
		return nil

	case ServerStdioHandles:
		c.stdio = transport.NewStdio(c.cfg.Reader, c.cfg.Writer)
		go c.runStdio(ctx)
		return nil

	case ServerSSE:
		client, err := transport.GetCustomHTTPClient()
		if err != nil {
			client = http.DefaultClient
		}
		c.httpClient = client
		return c.connectSSE(ctx)

	default:
		return fmt.Errorf("proxy: unknown server config kind %d", c.cfg.Kind)
	}
}

func (c *Client) runStdio(ctx context.Context) {
	err := c.stdio.Serve(ctx, func(_ context.Context, _ string, msg protocol.Message) {
		c.handleInbound(msg)
	})
	if err != nil && err != io.EOF {
		logger.Warn("proxy: stdio connection ended", err)
	}
	c.failAllPending(fmt.Errorf("proxy: connection closed"))
}

func (c *Client) handleInbound(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Response:
		c.resolve(m.ID, decodeAny(m.Result), nil)
	case protocol.ErrorResponse:
		c.resolve(m.ID, nil, m.Error)
	case protocol.Notification:
		if m.Method == string(protocol.NotificationMessage) {
			c.handleLogNotification(m.Params)
		}
	}
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}

func (c *Client) resolve(id protocol.Id, result any, err error) {
	n, ok := id.Int64()
	if !ok {
		return
	}
	c.mu.Lock()
	call, ok := c.pending[n]
	if ok {
		delete(c.pending, n)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	call.result = result
	call.err = err
	close(call.done)
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()
	for _, call := range pending {
		call.err = err
		close(call.done)
	}
}

// handleLogNotification coalesces identical consecutive log notifications
// arriving within coalesceWindow before forwarding to the registered
// LogHandler.
func (c *Client) handleLogNotification(raw json.RawMessage) {
	var p struct {
		Level string `json:"level"`
		Logger string `json:"logger"`
		Data any `json:"data"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	dataStr := fmt.Sprintf("%v", p.Data)

	c.lastLogMu.Lock()
	now := time.Now()
	duplicate := p.Level == c.lastLevel && p.Logger == c.lastLogger && dataStr == c.lastDataStr &&
		now.Sub(c.lastLogAt) < coalesceWindow
	c.lastLevel, c.lastLogger, c.lastDataStr, c.lastLogAt = p.Level, p.Logger, dataStr, now
	c.lastLogMu.Unlock()

	if duplicate {
		return
	}
	if c.onLog != nil {
		c.onLog(p.Level, p.Logger, p.Data)
	}
}

func (c *Client) nextRequestID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

func (c *Client) call(ctx context.Context, method string, params any) (any, error) {
	select {
	case c.callSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.callSem }()

	id := c.nextRequestID()
	req, err := protocol.NewRequest(method, params, protocol.NewIntId(id))
	if err != nil {
		return nil, err
	}

	call := &pendingCall{done: make(chan struct{})}
	c.mu.Lock()
	c.pending[id] = call
	c.mu.Unlock()

	if err := c.send(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		return call.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) send(req protocol.Request) error {
	return c.sendMessage(req)
}

func (c *Client) sendNotification(n protocol.Notification) error {
	return c.sendMessage(n)
}

func (c *Client) sendMessage(msg protocol.Message) error {
	switch c.cfg.Kind {
	case ServerStdio, ServerStdioHandles:
		return c.stdio.Send("", msg)
	case ServerSSE:
		return c.sendSSE(msg)
	default:
		return fmt.Errorf("proxy: no transport connected")
	}
}

// Initialize performs the initialize handshake and sends the follow-up
// notifications/initialized, which activates the remote session the same
// way the dispatcher's own handleNotification does on the server side.
func (c *Client) Initialize(ctx context.Context, clientInfo map[string]any) (map[string]any, error) {
	result, err := c.call(ctx, string(protocol.MethodInitialize), map[string]any{
		"protocolVersion": protocol.ProtocolVersion,
		"capabilities": map[string]any{},
		"clientInfo": clientInfo,
	})
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]any)

	notif, err := protocol.NewNotification(string(protocol.MethodInitialized), nil)
	if err != nil {
		return m, err
	}
	if err := c.sendNotification(notif); err != nil {
		return m, err
	}
	return m, nil
}

// ListTools returns the remote server's tool catalog, memoizing the first
// successful result when caching is enabled.
func (c *Client) ListTools(ctx context.Context) ([]map[string]any, error) {
	c.toolsMu.Lock()
	if c.cacheEnabled && c.toolsCached {
		defer c.toolsMu.Unlock()
		return c.cachedTools, nil
	}
	c.toolsMu.Unlock()

	result, err := c.call(ctx, string(protocol.MethodToolsList), map[string]any{})
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]any)
	raw, _ := m["tools"].([]any)
	tools := make([]map[string]any, 0, len(raw))
	for _, t := range raw {
		if tm, ok := t.(map[string]any); ok {
			tools = append(tools, tm)
		}
	}

	if c.cacheEnabled {
		c.toolsMu.Lock()
		c.cachedTools = tools
		c.toolsCached = true
		c.toolsMu.Unlock()
	}
	return tools, nil
}

// InvalidateToolsCache drops the memoized tools/list result; called on
// disconnect.
func (c *Client) InvalidateToolsCache() {
	c.toolsMu.Lock()
	defer c.toolsMu.Unlock()
	c.toolsCached = false
	c.cachedTools = nil
}

// CallTool invokes a remote tool by name.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	result, err := c.call(ctx, string(protocol.MethodToolsCall), map[string]any{
		"name": name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]any)
	return m, nil
}

// Ping round-trips a ping to check liveness.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, string(protocol.MethodPing), map[string]any{})
	return err
}

// Close tears down the underlying transport and invalidates any cached
// state.
func (c *Client) Close() error {
	c.InvalidateToolsCache()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// --- SSE client half ---

func (c *Client) connectSSE(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proxy: connect sse: %w", err)
	}

	endpointCh := make(chan string, 1)
	go c.readSSE(resp.Body, endpointCh)

	select {
	case endpoint := <-endpointCh:
		base := c.cfg.URL
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[:idx]
		}
		if strings.HasPrefix(endpoint, "http") {
			c.sseBase = endpoint
		} else {
			c.sseBase = base + endpoint
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("proxy: timed out waiting for sse endpoint event")
	}
}

func (c *Client) readSSE(body io.ReadCloser, endpointCh chan<- string) {
	defer body.Close()
	scanner := bufio.NewScanner(body)
	var event, data string
	gotEndpoint := false

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			switch event {
			case "endpoint":
				if !gotEndpoint {
					gotEndpoint = true
					endpointCh <- data
				}
			case "message":
				msg, err := protocol.Decode([]byte(data))
				if err == nil {
					c.handleInbound(msg)
				}
			}
			event, data = "", ""
		}
	}
	c.failAllPending(fmt.Errorf("proxy: sse stream closed"))
}

func (c *Client) sendSSE(msg protocol.Message) error {
	if c.sseBase == "" {
		return fmt.Errorf("proxy: sse not connected")
	}
	body, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.sseBase, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy: messages post returned %s", resp.Status)
	}
	return nil
}
