package mcpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mcp-math/transport"

	"github.com/elnormous/contenttype"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
	"github.com/tmaxmax/go-sse"
)

const (
	HeaderSessionID = "Mcp-Session-Id"

	msgNoValidSession = "Bad Request: No valid session ID provided"
	msgForbiddenHost  = "Forbidden: invalid Host header"
	msgForbiddenOrig  = "Forbidden: invalid Origin header"

	defaultMaxBodyBytes = 1 << 20
	defaultKeepAlive    = 15 * time.Second
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

type HandlerOptions struct {
	Path         string
	AllowedHosts []string
	KeepAlive    time.Duration
	MaxBodyBytes int64
}

// Handler is the HTTP front door of the session transport: POST carries
// commands, GET opens a notification stream and DELETE ends a session.
type Handler struct {
	t         *transport.Transport
	allowed   map[string]struct{}
	keepAlive time.Duration
	maxBody   int64
	mux       *http.ServeMux
}

func NewHandler(t *transport.Transport, opts HandlerOptions) *Handler {
	h := &Handler{
		t:         t,
		allowed:   map[string]struct{}{},
		keepAlive: opts.KeepAlive,
		maxBody:   opts.MaxBodyBytes,
		mux:       http.NewServeMux(),
	}
	for _, host := range opts.AllowedHosts {
		h.allowed[host] = struct{}{}
	}
	if h.keepAlive <= 0 {
		h.keepAlive = defaultKeepAlive
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBodyBytes
	}
	path := opts.Path
	if path == "" {
		path = "/mcp"
	}
	h.mux.HandleFunc("POST "+path, h.handlePost)
	h.mux.HandleFunc("GET "+path, h.handleGet)
	h.mux.HandleFunc("DELETE "+path, h.handleDelete)
	h.mux.HandleFunc("OPTIONS "+path, h.handleOptions)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", HeaderSessionID)

	if err := h.checkHost(r); err != nil {
		log.Warn().Err(err).Str("host", r.Host).Str("remote", r.RemoteAddr).Msg("rejected request")
		msg := msgForbiddenHost
		if r.Header.Get("Origin") != "" && h.hostAllowed(r.Host) {
			msg = msgForbiddenOrig
		}
		writeRPCError(rec, http.StatusForbidden, mcp.NewRequestId(nil), transport.CodeProtocolError, msg)
	} else {
		h.mux.ServeHTTP(rec, r)
	}

	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("session", r.Header.Get(HeaderSessionID)).
		Int("status", rec.Status()).
		Dur("duration", time.Since(start)).
		Msg("handled request")
}

// checkHost guards against DNS rebinding. It runs before any session lookup.
func (h *Handler) checkHost(r *http.Request) error {
	if !h.hostAllowed(r.Host) {
		return &transport.ProtocolError{Kind: transport.ErrForbidden, Message: "host " + r.Host}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || !h.hostAllowed(u.Host) {
		return &transport.ProtocolError{Kind: transport.ErrForbidden, Message: "origin " + origin}
	}
	return nil
}

func (h *Handler) hostAllowed(host string) bool {
	_, ok := h.allowed[host]
	return ok
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderSessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID != "" && !h.t.Has(sessionID) {
		writeNoValidSession(w)
		return
	}

	// Without a session header only a well-formed initialize is accepted;
	// every other body gets the same fixed rejection.
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		if sessionID == "" {
			writeNoValidSession(w)
			return
		}
		writeRPCError(w, http.StatusUnsupportedMediaType, mcp.NewRequestId(nil), transport.CodeProtocolError,
			"Unsupported Media Type: Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		if sessionID == "" {
			writeNoValidSession(w)
			return
		}
		writeRPCError(w, http.StatusRequestEntityTooLarge, mcp.NewRequestId(nil), transport.CodeProtocolError,
			"Payload Too Large")
		return
	}

	msg, parseErr := transport.ParseMessage(body)
	if sessionID == "" {
		if parseErr != nil {
			writeNoValidSession(w)
			return
		}
		h.initialize(w, r, msg)
		return
	}

	if parseErr != nil {
		code := mcp.INVALID_REQUEST
		text := "Invalid Request: " + parseErr.Error()
		if errors.Is(parseErr, transport.ErrParse) {
			code = mcp.PARSE_ERROR
			text = "Parse error"
		}
		writeRPCError(w, http.StatusBadRequest, mcp.NewRequestId(nil), code, text)
		return
	}

	reply, err := h.t.RouteCommand(r.Context(), sessionID, msg)
	if errors.Is(err, transport.ErrBadInitialization) {
		writeRPCError(w, http.StatusBadRequest, msg.RequestID(), mcp.INVALID_REQUEST,
			"Invalid Request: Server already initialized")
		return
	}
	if err != nil {
		writeNoValidSession(w)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request, msg *transport.Message) {
	pending, err := h.t.HandleInitialize(r.Context(), "", msg)
	if err != nil {
		log.Debug().Err(err).Msg("rejected session-less request")
		writeNoValidSession(w)
		return
	}
	if err := pending.Commit(); err != nil {
		log.Error().Err(err).Msg("commit session failed")
		writeRPCError(w, http.StatusInternalServerError, msg.RequestID(), mcp.INTERNAL_ERROR, "failed to initialize session")
		return
	}
	w.Header().Set(HeaderSessionID, pending.SessionID())
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, pending.Response())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if !h.t.Has(sessionID) {
		writeNoValidSession(w)
		return
	}
	if r.Header.Get("Accept") != "" {
		if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
			writeRPCError(w, http.StatusNotAcceptable, mcp.NewRequestId(nil), transport.CodeProtocolError,
				"Not Acceptable: Client must accept text/event-stream")
			return
		}
	}
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		writeRPCError(w, http.StatusInternalServerError, mcp.NewRequestId(nil), mcp.INTERNAL_ERROR, "streaming unsupported")
		return
	}
	stream, err := h.t.OpenStream(sessionID)
	if err != nil {
		writeNoValidSession(w)
		return
	}

	w.Header().Set(HeaderSessionID, sessionID)
	w.Header().Set("Cache-Control", "no-cache")
	if err := sess.Flush(); err != nil {
		h.connectionLost(stream, err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	seq := 0
	send := func(frame []byte) error {
		seq++
		msg := &sse.Message{ID: sse.ID(strconv.Itoa(seq)), Type: sse.Type("message")}
		msg.AppendData(string(frame))
		if err := sess.Send(msg); err != nil {
			return err
		}
		return sess.Flush()
	}

	for {
		select {
		case frame := <-stream.Messages():
			if err := send(frame); err != nil {
				h.connectionLost(stream, err)
				return
			}
		case <-stream.Done():
			for {
				select {
				case frame := <-stream.Messages():
					if err := send(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		case <-ticker.C:
			ping := &sse.Message{}
			ping.AppendComment("keep-alive")
			if err := sess.Send(ping); err == nil {
				err = sess.Flush()
			}
			if err != nil {
				h.connectionLost(stream, err)
				return
			}
		case <-r.Context().Done():
			h.connectionLost(stream, r.Context().Err())
			return
		}
	}
}

func (h *Handler) connectionLost(stream *transport.Stream, cause error) {
	ev := stream.Close(transport.ConnectionLost)
	if err := h.t.StreamClosed(ev); err != nil {
		log.Debug().Err(err).Str("session", ev.SessionID).Msg("session already gone")
	}
	log.Debug().AnErr("cause", cause).Str("session", ev.SessionID).Msg("stream connection closed")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.t.Terminate(r.Header.Get(HeaderSessionID)); err != nil {
		writeNoValidSession(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNoValidSession(w http.ResponseWriter) {
	writeRPCError(w, http.StatusBadRequest, mcp.NewRequestId(nil), transport.CodeProtocolError, msgNoValidSession)
}

func writeRPCError(w http.ResponseWriter, status int, id mcp.RequestId, code int, message string) {
	writeJSON(w, status, transport.NewRPCError(id, code, message, nil))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
