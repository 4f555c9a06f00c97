package transport

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"mcp-math/service"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultInitTimeout  = 30 * time.Second
	defaultStreamBuffer = 64
	minReapInterval     = time.Millisecond
)

type Options struct {
	ServerInfo   mcp.Implementation
	Instructions string
	// InitTimeout bounds how long an accepted initialize may stay
	// uncommitted before it is reclaimed.
	InitTimeout  time.Duration
	StreamBuffer int
	Logger       *zerolog.Logger
}

// Transport owns the session registry and routes every inbound message to
// its session.
type Transport struct {
	tools        *service.Registry
	info         mcp.Implementation
	instructions string
	initTimeout  time.Duration
	streamBuffer int
	log          zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*Pending
}

func New(tools *service.Registry, opts Options) *Transport {
	t := &Transport{
		tools:        tools,
		info:         opts.ServerInfo,
		instructions: opts.Instructions,
		initTimeout:  opts.InitTimeout,
		streamBuffer: opts.StreamBuffer,
		log:          log.Logger.With().Str("component", "transport").Logger(),
		sessions:     map[string]*Session{},
		pending:      map[string]*Pending{},
	}
	if opts.Logger != nil {
		t.log = *opts.Logger
	}
	if t.initTimeout <= 0 {
		t.initTimeout = defaultInitTimeout
	}
	if t.streamBuffer <= 0 {
		t.streamBuffer = defaultStreamBuffer
	}
	return t
}

// Pending is an accepted initialize whose session is not yet registered.
type Pending struct {
	t        *Transport
	session  *Session
	response mcp.JSONRPCResponse
	deadline time.Time
}

func (p *Pending) SessionID() string { return p.session.id }

// Response is the initialize acknowledgment to send back to the client.
func (p *Pending) Response() mcp.JSONRPCResponse { return p.response }

// Commit completes the handshake and registers the session. It fails with
// UnknownSession when the pending entry was already reclaimed.
func (p *Pending) Commit() error {
	t := p.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[p.session.id] != p {
		return unknownSession(p.session.id)
	}
	delete(t.pending, p.session.id)
	t.sessions[p.session.id] = p.session
	t.log.Info().Str("session", p.session.id).Str("client", p.session.client.Name).Str("protocol", p.session.version).Msg("session initialized")
	return nil
}

// Abandon drops the pending session without registering it.
func (p *Pending) Abandon() {
	t := p.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[p.session.id] == p {
		delete(t.pending, p.session.id)
	}
}

// HandleInitialize accepts msg only when no session id was supplied and msg
// is an initialize request.
func (t *Transport) HandleInitialize(ctx context.Context, sessionID string, msg *Message) (*Pending, error) {
	if sessionID != "" {
		return nil, badInitialization("session id already present")
	}
	params, ok := msg.InitializeParams()
	if !ok {
		return nil, badInitialization("not an initialize request")
	}

	version := mcp.LATEST_PROTOCOL_VERSION
	if slices.Contains(mcp.ValidProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	result := mcp.InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      t.info,
		Instructions:    t.instructions,
	}
	result.Capabilities.Tools = &struct {
		ListChanged bool `json:"listChanged,omitempty"`
	}{}
	result.Capabilities.Logging = &struct{}{}

	t.mu.Lock()
	defer t.mu.Unlock()
	id := uuid.NewString()
	for t.sessions[id] != nil || t.pending[id] != nil {
		id = uuid.NewString()
	}
	p := &Pending{
		t:        t,
		session:  newSession(id, params, version),
		response: newRPCResult(msg.RequestID(), result),
		deadline: time.Now().Add(t.initTimeout),
	}
	t.pending[id] = p
	return p, nil
}

func (t *Transport) lookup(sessionID string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, exist := t.sessions[sessionID]
	if !exist {
		return nil, unknownSession(sessionID)
	}
	return sess, nil
}

// Has reports whether sessionID names a live session.
func (t *Transport) Has(sessionID string) bool {
	_, err := t.lookup(sessionID)
	return err == nil
}

// RouteCommand forwards msg to the session's handler. The reply is nil for
// notifications and responses, otherwise an mcp.JSONRPCResponse or
// mcp.JSONRPCError. A repeated initialize fails with BadInitialization.
// Failed commands leave the session open.
func (t *Transport) RouteCommand(ctx context.Context, sessionID string, msg *Message) (any, error) {
	sess, err := t.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.life.RLock()
	defer sess.life.RUnlock()
	if sess.isClosed() {
		return nil, unknownSession(sessionID)
	}
	if msg.IsRequest() && msg.Method == string(mcp.MethodInitialize) {
		return nil, badInitialization("session already initialized")
	}
	return t.dispatch(ctx, sess, msg), nil
}

// OpenStream attaches a new push channel to the session.
func (t *Transport) OpenStream(sessionID string) (*Stream, error) {
	sess, err := t.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	stream, ok := sess.openStream(t.streamBuffer)
	if !ok {
		return nil, unknownSession(sessionID)
	}
	t.log.Debug().Str("session", sessionID).Msg("stream opened")
	return stream, nil
}

// StreamClosed reacts to a stream close. A lost connection ends the session;
// a concurrent Terminate makes this report UnknownSession instead.
func (t *Transport) StreamClosed(ev CloseEvent) error {
	t.log.Debug().Str("session", ev.SessionID).Stringer("reason", ev.Reason).Msg("stream closed")
	if !ev.Initiated || ev.Reason != ConnectionLost {
		return nil
	}
	return t.Terminate(ev.SessionID)
}

// Notify enqueues a server-to-client notification on the session's streams.
func (t *Transport) Notify(sessionID string, method string, params any) error {
	sess, err := t.lookup(sessionID)
	if err != nil {
		return err
	}
	return t.notify(sess, method, params)
}

func (t *Transport) notify(sess *Session, method string, params any) error {
	frame, err := json.Marshal(notification{
		JSONRPC: mcp.JSONRPC_VERSION,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	sess.broadcast(frame)
	return nil
}

// Terminate closes the session's streams and removes it. Exactly one of any
// number of concurrent calls succeeds; the rest get UnknownSession.
func (t *Transport) Terminate(sessionID string) error {
	t.mu.Lock()
	sess, exist := t.sessions[sessionID]
	if exist {
		delete(t.sessions, sessionID)
	}
	t.mu.Unlock()
	if !exist {
		return unknownSession(sessionID)
	}

	sess.life.Lock()
	sess.shutdown()
	sess.life.Unlock()
	t.log.Info().Str("session", sessionID).Dur("age", time.Since(sess.createdAt)).Msg("session terminated")
	return nil
}

// Len returns the number of live sessions.
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Run reclaims expired pending sessions until ctx is done.
func (t *Transport) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(t.initTimeout/2, minReapInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := t.reapPending(now); n > 0 {
				t.log.Warn().Int("count", n).Msg("reclaimed uncommitted sessions")
			}
		}
	}
}

func (t *Transport) reapPending(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, p := range t.pending {
		if now.After(p.deadline) {
			delete(t.pending, id)
			n++
		}
	}
	return n
}

// Close terminates every live session.
func (t *Transport) Close() error {
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.pending = map[string]*Pending{}
	t.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := t.Terminate(id); err != nil && !errors.Is(err, ErrUnknownSession) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
