package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

var (
	ErrParse          = errors.New("parse error")
	ErrInvalidMessage = errors.New("invalid request")
	ErrBatchMessage   = errors.New("batch requests are not supported")
)

// Message is one inbound JSON-RPC frame: a request, a notification or a
// response to a server request.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *mcp.RequestId  `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func ParseMessage(data []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, ErrBatchMessage
	}
	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err)
	}
	if msg.JSONRPC != mcp.JSONRPC_VERSION {
		return nil, fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidMessage, mcp.JSONRPC_VERSION)
	}
	if msg.Method == "" && msg.Result == nil && msg.Error == nil {
		return nil, fmt.Errorf("%w: missing method", ErrInvalidMessage)
	}
	return &msg, nil
}

func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports a client reply to a server-initiated request.
func (m *Message) IsResponse() bool {
	return m.Method == ""
}

// RequestID returns the id, or a nil id for notifications.
func (m *Message) RequestID() mcp.RequestId {
	if m.ID == nil {
		return mcp.NewRequestId(nil)
	}
	return *m.ID
}

// InitializeParams decodes the params of a recognized initialize request.
func (m *Message) InitializeParams() (*mcp.InitializeParams, bool) {
	if !m.IsRequest() || m.Method != string(mcp.MethodInitialize) || len(m.Params) == 0 {
		return nil, false
	}
	var params mcp.InitializeParams
	if err := json.Unmarshal(m.Params, &params); err != nil {
		return nil, false
	}
	if params.ProtocolVersion == "" {
		return nil, false
	}
	return &params, true
}

// notification is an outbound server-to-client frame.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}
