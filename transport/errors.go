package transport

import (
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

// CodeProtocolError is the JSON-RPC code used for session and host
// rejections.
const CodeProtocolError = -32000

var (
	ErrBadInitialization = errors.New("bad initialization")
	ErrUnknownSession    = errors.New("unknown session")
	ErrForbidden         = errors.New("forbidden")
)

// ProtocolError is a client-correctable rejection raised before a message
// reaches a session.
type ProtocolError struct {
	Kind    error
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Kind }

func badInitialization(msg string) error {
	return &ProtocolError{Kind: ErrBadInitialization, Message: msg}
}

func unknownSession(id string) error {
	return &ProtocolError{Kind: ErrUnknownSession, Message: id}
}

// NewRPCError builds an error response envelope.
func NewRPCError(id mcp.RequestId, code int, message string, data any) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: mcp.JSONRPCErrorDetails{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func newRPCResult(id mcp.RequestId, result any) mcp.JSONRPCResponse {
	return mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Result:  result,
	}
}
