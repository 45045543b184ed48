// Package transport carries decoded protocol.Message values between a
// Dispatcher and the outside world over stdio, HTTP+SSE or streamable HTTP.
// httpclient.go's shared *http.Client also backs the proxy's outbound HTTP
// calls and the html_to_markdown tool's fetches.
package transport

import (
	"context"

	"github.com/richard-senior/mcp/pkg/protocol"
)

// HandleFunc is what a transport calls for every decoded inbound message;
// it is normally (*dispatcher.Dispatcher).Handle.
type HandleFunc func(ctx context.Context, sessionID string, msg protocol.Message)

// Sender is the write side every transport implements so a Dispatcher can
// push responses and server-initiated notifications/requests back out
// without knowing which transport it's talking to.
type Sender interface {
	Send(sessionID string, msg protocol.Message) error
}
