package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/protocol"
)

// newFakeServer wires a client's stdio against an in-process fake server
// that answers canned responses, mirroring the "stdioHandles" connection
// mode without spawning a process. The returned reader is
// already line-buffered so a single readRequest call drains both the
// message bytes and the trailing newline the client writes separately. The
// pipes are closed on test cleanup so any lingering server-side reader
// unblocks.
func newFakeServer(t *testing.T) (clientCfg ServerConfig, serverIn io.WriteCloser, serverOut *bufio.Reader) {
	t.Helper()
	clientReadFromServer, serverWriteToClient := io.Pipe()
	serverReadFromClient, clientWriteToServer := io.Pipe()

	t.Cleanup(func() {
		clientReadFromServer.Close()
		serverWriteToClient.Close()
		serverReadFromClient.Close()
		clientWriteToServer.Close()
	})

	cfg := ServerConfig{
		Kind: ServerStdioHandles,
		Reader: clientReadFromServer,
		Writer: clientWriteToServer,
	}
	return cfg, serverWriteToClient, bufio.NewReader(serverReadFromClient)
}

func writeMessage(t *testing.T, w io.Writer, msg protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	_, err = w.Write(append(data, '\n'))
	require.NoError(t, err)
}

func readRequest(t *testing.T, r *bufio.Reader) protocol.Request {
	t.Helper()
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	msg, err := protocol.Decode(line)
	require.NoError(t, err)
	req, ok := msg.(protocol.Request)
	require.True(t, ok)
	return req
}

// drainLine discards exactly one newline-delimited message, used to consume
// the client's follow-up notifications/initialized so its write never
// blocks on an unread pipe.
func drainLine(r *bufio.Reader) {
	_, _ = r.ReadBytes('\n')
}

func TestClientInitializeRoundTrip(t *testing.T) {
	cfg, serverWriter, serverReader := newFakeServer(t)
	client := New(cfg, false)
	require.NoError(t, client.Connect(context.Background()))

	var gotMethod string
	go func() {
		req := readRequest(t, serverReader)
		gotMethod = req.Method

		resp, err := protocol.NewResponse(map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{"name": "fake"},
		}, req.ID)
		require.NoError(t, err)
		writeMessage(t, serverWriter, resp)

		drainLine(serverReader) // notifications/initialized
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := client.Initialize(ctx, map[string]any{"name": "test-client"})
	require.NoError(t, err)
	assert.Equal(t, string(protocol.MethodInitialize), gotMethod)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
}

func TestClientCallToolReturnsResult(t *testing.T) {
	cfg, serverWriter, serverReader := newFakeServer(t)
	client := New(cfg, false)
	require.NoError(t, client.Connect(context.Background()))

	var gotMethod string
	go func() {
		req := readRequest(t, serverReader)
		gotMethod = req.Method
		resp, _ := protocol.NewResponse(map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "4"}},
		}, req.ID)
		writeMessage(t, serverWriter, resp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := client.CallTool(ctx, "add", map[string]any{"a": 2, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, string(protocol.MethodToolsCall), gotMethod)
	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
}

func TestClientPingPropagatesError(t *testing.T) {
	cfg, serverWriter, serverReader := newFakeServer(t)
	client := New(cfg, false)
	require.NoError(t, client.Connect(context.Background()))

	go func() {
		req := readRequest(t, serverReader)
		writeMessage(t, serverWriter, protocol.NewErrorResponse(protocol.ErrInternal, "boom", nil, req.ID))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestListToolsCachesWhenEnabled(t *testing.T) {
	cfg, serverWriter, serverReader := newFakeServer(t)
	client := New(cfg, true)
	require.NoError(t, client.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := readRequest(t, serverReader)
		resp, _ := protocol.NewResponse(map[string]any{
			"tools": []any{map[string]any{"name": "add"}},
		}, req.ID)
		writeMessage(t, serverWriter, resp)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tools1, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools1, 1)
	<-done // first call's request/response round trip has completed

	// A second ListTools call must be served from the in-memory cache and
	// never touch the wire: the fake server above is only good for one
	// request, so a real second round trip would hang this test.
	tools2, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools2, 1)
	assert.Equal(t, tools1, tools2)
}

// TestCallSerializesConcurrentRequests asserts the at-most-one-concurrent-
// request discipline: a second CallTool started while the first is still
// awaiting its response must not put its request on the wire until the
// first has been answered.
func TestCallSerializesConcurrentRequests(t *testing.T) {
	cfg, serverWriter, serverReader := newFakeServer(t)
	client := New(cfg, false)
	require.NoError(t, client.Connect(context.Background()))

	var firstRespondedAt, secondArrivedAt time.Time
	secondArrived := make(chan struct{})

	go func() {
		req1 := readRequest(t, serverReader)
		time.Sleep(100 * time.Millisecond)
		resp1, _ := protocol.NewResponse(map[string]any{"ok": true}, req1.ID)
		firstRespondedAt = time.Now()
		writeMessage(t, serverWriter, resp1)

		req2 := readRequest(t, serverReader)
		secondArrivedAt = time.Now()
		close(secondArrived)
		resp2, _ := protocol.NewResponse(map[string]any{"ok": true}, req2.ID)
		writeMessage(t, serverWriter, resp2)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := client.CallTool(ctx, "a", nil)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := client.CallTool(ctx, "b", nil)
		assert.NoError(t, err)
	}()
	wg.Wait()

	select {
	case <-secondArrived:
	default:
		t.Fatal("second request never reached the fake server")
	}
	assert.False(t, secondArrivedAt.Before(firstRespondedAt),
		"second call's request must not reach the wire before the first call's response was sent")
}

func TestLogNotificationCoalescesDuplicates(t *testing.T) {
	cfg, serverWriter, _ := newFakeServer(t)
	client := New(cfg, false)

	var received []string
	client.OnLog(func(level, loggerName string, data any) {
		received = append(received, level)
	})
	require.NoError(t, client.Connect(context.Background()))

	params, _ := json.Marshal(map[string]any{"level": "info", "logger": "x", "data": "hello"})
	notif := protocol.Notification{Method: string(protocol.NotificationMessage), Params: params}

	writeMessage(t, serverWriter, notif)
	writeMessage(t, serverWriter, notif)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, received, 1, "identical consecutive log notifications within the coalesce window collapse to one")
}
