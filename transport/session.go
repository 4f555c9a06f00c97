package transport

import (
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

type CloseReason int

const (
	// ConnectionLost means the physical connection carrying the stream went
	// away. It ends the whole session.
	ConnectionLost CloseReason = iota
	// SessionTerminated means the session was torn down first.
	SessionTerminated
	// Overflow means the client did not drain the stream fast enough.
	Overflow
)

func (r CloseReason) String() string {
	switch r {
	case ConnectionLost:
		return "connection_lost"
	case SessionTerminated:
		return "session_terminated"
	case Overflow:
		return "overflow"
	}
	return "unknown"
}

// CloseEvent is the result of closing a stream. The transport reacts to it in
// StreamClosed.
type CloseEvent struct {
	SessionID string
	Reason    CloseReason
	// Initiated is true only for the call that actually closed the stream.
	Initiated bool
}

// Session is the server-side state of one logical client conversation.
type Session struct {
	id        string
	createdAt time.Time
	client    mcp.Implementation
	version   string

	// life serializes teardown against in-flight commands: commands hold it
	// shared, Terminate holds it exclusively.
	life sync.RWMutex

	mu      sync.Mutex
	closed  bool
	ready   bool
	streams map[*Stream]struct{}
}

func newSession(id string, params *mcp.InitializeParams, version string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		client:    params.ClientInfo,
		version:   version,
		streams:   map[*Stream]struct{}{},
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) markReady() {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
}

// Ready reports whether the client confirmed the handshake.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Session) openStream(size int) (*Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	stream := &Stream{
		session: s,
		out:     make(chan []byte, size),
		done:    make(chan struct{}),
	}
	s.streams[stream] = struct{}{}
	return stream, true
}

// broadcast enqueues frame on every open stream. Holding mu keeps the
// per-session order identical on all streams.
func (s *Session) broadcast(frame []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delivered := 0
	for stream := range s.streams {
		select {
		case stream.out <- frame:
			delivered++
		default:
			s.detachLocked(stream, Overflow)
		}
	}
	return delivered
}

// shutdown closes every stream. The caller holds life exclusively.
func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for stream := range s.streams {
		s.detachLocked(stream, SessionTerminated)
	}
}

func (s *Session) detachLocked(stream *Stream, reason CloseReason) bool {
	if _, ok := s.streams[stream]; !ok {
		return false
	}
	delete(s.streams, stream)
	stream.reason = reason
	close(stream.done)
	return true
}

// Stream is a server-to-client push channel bound to one session.
type Stream struct {
	session *Session
	out     chan []byte
	done    chan struct{}
	reason  CloseReason
}

func (s *Stream) SessionID() string { return s.session.id }

// Messages yields encoded notifications in the order they were enqueued.
func (s *Stream) Messages() <-chan []byte { return s.out }

// Done is closed once the stream has been detached from its session.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close detaches the stream and reports what happened. Closing an already
// closed stream returns the original reason with Initiated unset.
func (s *Stream) Close(reason CloseReason) CloseEvent {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	initiated := s.session.detachLocked(s, reason)
	return CloseEvent{
		SessionID: s.session.id,
		Reason:    s.reason,
		Initiated: initiated,
	}
}
