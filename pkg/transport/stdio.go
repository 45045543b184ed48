package transport

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/protocol"
)

// Stdio is a JSON-RPC transport over any io.Reader/io.Writer pair. It backs
// both the real process stdin/stdout and the proxy's in-process pipes to a
// server run inside the same process.
type Stdio struct {
	reader    *bufio.Reader
	writer    io.Writer
	wmu       sync.Mutex

	sessionID string
}

func NewStdio(r io.Reader, w io.Writer) *Stdio {
	return &Stdio{reader: bufio.NewReader(r), writer: w}
}

// BindSession assigns the single session id this connection maps to; a
// stdio transport only ever carries one session.
func (t *Stdio) BindSession(id string) { t.sessionID = id }

func (t *Stdio) SessionID() string { return t.sessionID }

// Serve reads one JSON value at a time until EOF or ctx cancellation,
// decoding each with protocol.Decode and invoking handle. A line that fails
// to decode is logged and, when it carried a recoverable JsonRpcError
// (the ParseError), answered directly rather than crashing the
// connection.
func (t *Stdio) Serve(ctx context.Context, handle HandleFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := readValue(t.reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		msg, decodeErr := protocol.Decode(raw)
		if decodeErr != nil {
			logger.Error("stdio: failed to decode message", decodeErr)
			if rpcErr, ok := decodeErr.(*protocol.JsonRpcError); ok {
				_ = t.Send(t.sessionID, protocol.NewErrorResponse(rpcErr.Code, rpcErr.Message, nil, protocol.NullId))
			}
			continue
		}
		handle(ctx, t.sessionID, msg)
	}
}

// Send implements the Sender interface: it JSON-encodes msg and writes it
// followed by a newline, serialized by a single output mutex.
func (t *Stdio) Send(sessionID string, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	_, err = t.writer.Write([]byte("\n"))
	return err
}

// readValue reads one balanced top-level JSON value (object or array) from
// r, skipping leading whitespace. String literals and escape sequences are
// tracked so braces/brackets inside them don't affect the depth count.
func readValue(r *bufio.Reader) ([]byte, error) {
	var data []byte
	var depth int
	var inString, escapeNext bool
	started := false

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if !started {
			if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
				continue
			}
			started = true
		}
		data = append(data, b)

		if !escapeNext && b == '"' {
			inString = !inString
		}
		if inString && b == '\\' {
			escapeNext = !escapeNext
		} else {
			escapeNext = false
		}

		if !inString {
			switch b {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return data, nil
				}
			}
		}
	}
}
