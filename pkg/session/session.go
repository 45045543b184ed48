// Package session holds the per-connection state machine a server tracks
// for each client: negotiated capabilities, subscriptions, the logging
// floor and the bidirectional pending-request table.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/richard-senior/mcp/pkg/protocol"
)

// ErrSessionClosed resolves any outbound call still pending when its owning
// session is torn down.
var ErrSessionClosed = errors.New("session: closed while request was pending")

// Capabilities is the subset of the initialize handshake's capability
// object a session needs to remember after negotiation.
type Capabilities struct {
	Roots       bool
	Sampling    bool
	Elicitation bool
}

// PendingOutbound tracks a server-initiated request awaiting its client
// response : sampling/createMessage, elicitation/create,
// roots/list.
type PendingOutbound struct {
	Method string
	Done   chan OutboundResult
}

// OutboundResult is delivered to a PendingOutbound's Done channel once the
// client's response (or the session's teardown) resolves it.
type OutboundResult struct {
	Result any
	Err    error
}

// Session is one client connection's negotiated state. All mutation goes
// through its methods, which serialize via mu; nothing reaches into its
// fields directly from outside the package.
type Session struct {
	mu                        sync.Mutex

	id                        string
	clientCapabilities        Capabilities
	serverCapabilities        Capabilities
	negotiatedProtocolVersion string
	initialized               bool

	subscribedResources       map[string]bool
	minimumLogLevel           string

	nextOutboundID            int64
	pendingOutbound           map[int64]*PendingOutbound

	roots                     []string

	// contextStore is a free-form per-session bag tools can stash state in
	// across calls.
	contextStore              map[string]any
}

// New creates a session with a fresh random id.
func New() *Session {
	return &Session{
		id: uuid.NewString(),
		subscribedResources: make(map[string]bool),
		minimumLogLevel: "info",
		pendingOutbound: make(map[int64]*PendingOutbound),
		contextStore: make(map[string]any),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Negotiate records the capabilities and protocol version agreed during
// initialize. The session isn't marked active until the client's separate
// "initialized" notification arrives - see Activate.
func (s *Session) Negotiate(client, server Capabilities, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCapabilities = client
	s.serverCapabilities = server
	s.negotiatedProtocolVersion = version
}

// Activate marks the session ready for use, called on the client's
// notifications/initialized.
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) ClientCapabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientCapabilities
}

func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiatedProtocolVersion
}

func (s *Session) Subscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribedResources[uri] = true
}

func (s *Session) Unsubscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribedResources, uri)
}

func (s *Session) IsSubscribed(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribedResources[uri]
}

func (s *Session) SubscribedResources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subscribedResources))
	for uri := range s.subscribedResources {
		out = append(out, uri)
	}
	return out
}

func (s *Session) SetMinimumLogLevel(level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minimumLogLevel = level
}

func (s *Session) MinimumLogLevel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimumLogLevel
}

func (s *Session) SetRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = append([]string(nil), roots...)
}

func (s *Session) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roots...)
}

func (s *Session) ContextGet(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.contextStore[key]
	return v, ok
}

func (s *Session) ContextSet(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextStore[key] = value
}

// NewOutbound allocates the next monotonic outbound request id and
// registers a pending slot for it. The caller sends the request with that
// id and later calls Resolve, with a result or an error, once the client
// answers.
func (s *Session) NewOutbound(method string) (protocol.Id, *PendingOutbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOutboundID++
	id := s.nextOutboundID
	p := &PendingOutbound{Method: method, Done: make(chan OutboundResult, 1)}
	s.pendingOutbound[id] = p
	return protocol.NewIntId(id), p
}

// Resolve completes a pending outbound call keyed by its integer id. It is
// a no-op if no such call is pending (late or duplicate response).
func (s *Session) Resolve(id int64, result any, callErr error) {
	s.mu.Lock()
	p, ok := s.pendingOutbound[id]
	if ok {
		delete(s.pendingOutbound, id)
	}
	s.mu.Unlock()
	if ok {
		p.Done <- OutboundResult{Result: result, Err: callErr}
	}
}

// DrainPending fails every still-outstanding outbound call, used when a
// session's transport dies so callers blocked on Done don't hang forever.
func (s *Session) DrainPending(err error) {
	s.mu.Lock()
	pending := s.pendingOutbound
	s.pendingOutbound = make(map[int64]*PendingOutbound)
	s.mu.Unlock()
	for _, p := range pending {
		p.Done <- OutboundResult{Err: err}
	}
}

// Store is the process-wide table of live sessions, keyed by session id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create allocates a new session, registers it in the store and returns it.
func (st *Store) Create() *Session {
	s := New()
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.DrainPending(ErrSessionClosed)
	}
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// IDs returns the ids of every currently-tracked session, for server-
// initiated broadcasts such as a */list_changed notification.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}
