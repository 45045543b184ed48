package mcptypes

import (
	"context"
	"encoding/base64"
)

// ProgressFunc reports incremental progress for a long-running handler.
// The dispatcher supplies one bound to the inbound request's progress
// token.
type ProgressFunc func(progress, total float64, message string)

// LogFunc emits a log notification scoped to the current session. The
// dispatcher drops it before it reaches the transport if level is below
// the session's configured floor.
type LogFunc func(level string, logger string, data any)

// RequestContext is threaded through every handler invocation: the
// session it runs under, the inbound request id (for cancellation and
// progress correlation), a context.Context carrying the cancellation
// signal, and sinks for progress/log notifications.
type RequestContext struct {
	Context      context.Context
	SessionID    string
	RequestID    string // string form of the inbound Id, for correlation/logging

	Progress     ProgressFunc
	Log          LogFunc

	// Elicit, Sample and RequestRoots perform a server-initiated
	// bidirectional call. They are nil when the transport/dispatcher
	// wiring doesn't support outbound calls (e.g. the handler is running
	// outside of a live session, as in a unit test).
	Elicit       func(ctx context.Context, prompt string, schemaJSON any) (map[string]any, error)
	Sample       func(ctx context.Context, req any) (any, error)
	RequestRoots func(ctx context.Context) ([]string, error)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a base64 blob as produced by BlobContent.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
