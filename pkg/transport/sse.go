package transport

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/session"
)

// SSE implements the HTTP+SSE transport of the protocol: a GET endpoint opens
// a per-client event stream whose first event carries a session-scoped
// messages URL; a POST to that URL submits one JSON-RPC request at a time,
// answered later as a "message" event on the open stream.
type SSE struct {
	Sessions     *session.Store
	MessagesPath string
	KeepAlive    time.Duration

	mu           sync.Mutex
	conns        map[string]chan []byte
}

func NewSSE(sessions *session.Store, messagesPath string) *SSE {
	return &SSE{
		Sessions: sessions,
		MessagesPath: messagesPath,
		KeepAlive: 15 * time.Second,
		conns: make(map[string]chan []byte),
	}
}

// HandleSSE is the GET /sse handler.
func (s *SSE) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.Sessions.Create()
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.conns[sess.ID()] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, sess.ID())
		s.mu.Unlock()
		s.Sessions.Delete(sess.ID())
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	endpoint := fmt.Sprintf("%s?sessionId=%s", s.MessagesPath, sess.ID())
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flusher.Flush()

	ticker := time.NewTicker(s.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case data := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// HandleMessages builds the POST messages-URL handler. The session id
// travels in the query string.
func (s *SSE) HandleMessages(handle HandleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			http.Error(w, "missing sessionId", http.StatusBadRequest)
			return
		}
		if _, ok := s.Sessions.Get(sessionID); !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		msg, err := protocol.Decode(body)
		if err != nil {
			http.Error(w, "invalid JSON-RPC message", http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		handle(r.Context(), sessionID, msg)
	}
}

// Send implements Sender by pushing msg onto sessionID's open SSE stream,
// if one is currently attached.
func (s *SSE) Send(sessionID string, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ch, ok := s.conns[sessionID]
	s.mu.Unlock()
	if !ok {
		logger.Debug("sse: dropping message, no open stream for session", sessionID)
		return nil
	}
	select {
	case ch <- data:
	default:
		logger.Warn("sse: connection backlog full, dropping message for session", sessionID)
	}
	return nil
}
