package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/session"
)

// Streamable implements the single-endpoint streamable HTTP transport of
// the protocol: POST carries one request, the server assigns Mcp-Session-Id
// on the initialize response and echoes it thereafter. A POST is answered
// either as a single JSON body or - when the client accepts
// text/event-stream - as an SSE stream carrying any notifications emitted
// during the handler followed by the final response. GET on the same
// endpoint opens a standalone SSE stream the server can push
// server-initiated requests and notifications onto; DELETE tears the
// session down.
type Streamable struct {
	Sessions  *session.Store
	KeepAlive time.Duration

	mu      sync.Mutex
	waiters map[string]chan protocol.Message // sessionID+"|"+id -> one-shot reply channel
	streams map[string][]chan []byte         // sessionID -> open SSE streams; Send pushes to the newest
}

func NewStreamable(sessions *session.Store) *Streamable {
	return &Streamable{
		Sessions: sessions,
		KeepAlive: 15 * time.Second,
		waiters: make(map[string]chan protocol.Message),
		streams: make(map[string][]chan []byte),
	}
}

func (s *Streamable) Handler(handle HandleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handlePost(w, r, handle)
		case http.MethodGet:
			s.handleStream(w, r)
		case http.MethodDelete:
			s.handleDelete(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Streamable) handlePost(w http.ResponseWriter, r *http.Request, handle HandleFunc) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	msg, err := protocol.Decode(body)
	if err != nil {
		writeJSON(w, protocol.NewErrorResponse(protocol.ErrParse, "invalid JSON-RPC message", nil, protocol.NullId))
		return
	}

	req, isRequest := msg.(protocol.Request)
	sessionID := r.Header.Get("Mcp-Session-Id")

	switch {
	case sessionID == "" && isRequest && req.Method == string(protocol.MethodInitialize):
		sessionID = s.Sessions.Create().ID()
	case sessionID != "":
		if _, ok := s.Sessions.Get(sessionID); !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
	default:
		http.Error(w, "missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Mcp-Session-Id", sessionID)

	if !isRequest {
		handle(r.Context(), sessionID, msg)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	key := sessionID + "|" + req.ID.String()
	wait := make(chan protocol.Message, 1)
	s.mu.Lock()
	s.waiters[key] = wait
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, key)
		s.mu.Unlock()
	}()

	flusher, canFlush := w.(http.Flusher)
	if canFlush && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamReply(w, r, flusher, sessionID, wait, handle, msg)
		return
	}

	handle(r.Context(), sessionID, msg)

	select {
	case reply := <-wait:
		writeJSON(w, reply)
	case <-r.Context().Done():
	}
}

// streamReply answers one POSTed request as an SSE stream: notifications
// the handler emits for the session are pushed as they happen, then the
// final response closes the stream. The per-request channel is registered
// before the handler starts so nothing emitted mid-call is lost.
func (s *Streamable) streamReply(w http.ResponseWriter, r *http.Request, flusher http.Flusher, sessionID string, wait chan protocol.Message, handle HandleFunc, msg protocol.Message) {
	ch := make(chan []byte, 16)
	s.pushStream(sessionID, ch)
	defer s.popStream(sessionID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	go handle(r.Context(), sessionID, msg)

	for {
		select {
		case data := <-ch:
			writeEvent(w, flusher, data)
		case reply := <-wait:
			// Drain anything the handler pushed before replying so
			// notifications stay ordered ahead of the response.
			for {
				select {
				case data := <-ch:
					writeEvent(w, flusher, data)
					continue
				default:
				}
				break
			}
			data, err := protocol.Encode(reply)
			if err != nil {
				logger.Error("streamable: failed to encode reply", err)
				return
			}
			writeEvent(w, flusher, data)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleStream is the GET half: it opens a long-lived SSE stream the server
// can push server-initiated requests and notifications onto, for a session
// that already exists.
func (s *Streamable) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	if _, ok := s.Sessions.Get(sessionID); !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan []byte, 16)
	s.pushStream(sessionID, ch)
	defer s.popStream(sessionID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Mcp-Session-Id", sessionID)
	w.WriteHeader(http.StatusOK)
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
			writeEvent(w, flusher, data)
		}
	}
}

func (s *Streamable) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	s.Sessions.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Streamable) pushStream(sessionID string, ch chan []byte) {
	s.mu.Lock()
	s.streams[sessionID] = append(s.streams[sessionID], ch)
	s.mu.Unlock()
}

func (s *Streamable) popStream(sessionID string, ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := s.streams[sessionID]
	for i, c := range open {
		if c == ch {
			s.streams[sessionID] = append(open[:i], open[i+1:]...)
			break
		}
	}
	if len(s.streams[sessionID]) == 0 {
		delete(s.streams, sessionID)
	}
}

// Send implements Sender: a Response/ErrorResponse is routed to the
// request's waiting HTTP handler; anything else (a notification, or a
// server-initiated request) goes out on the session's most recently opened
// SSE stream if it has one, and is otherwise dropped.
func (s *Streamable) Send(sessionID string, msg protocol.Message) error {
	var id protocol.Id
	switch m := msg.(type) {
	case protocol.Response:
		id = m.ID
	case protocol.ErrorResponse:
		id = m.ID
	default:
		data, err := protocol.Encode(msg)
		if err != nil {
			return err
		}
		s.mu.Lock()
		var ch chan []byte
		if open := s.streams[sessionID]; len(open) > 0 {
			ch = open[len(open)-1]
		}
		s.mu.Unlock()
		if ch == nil {
			logger.Debug("streamable: dropping message, no open stream for session", sessionID)
			return nil
		}
		select {
		case ch <- data:
		default:
			logger.Warn("streamable: stream backlog full, dropping message for session", sessionID)
		}
		return nil
	}

	key := sessionID + "|" + id.String()
	s.mu.Lock()
	wait, ok := s.waiters[key]
	s.mu.Unlock()
	if ok {
		wait <- msg
	}
	return nil
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, data []byte) {
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, msg protocol.Message) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		logger.Error("streamable: failed to write JSON response", err)
	}
}
