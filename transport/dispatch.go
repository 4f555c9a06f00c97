package transport

import (
	"context"
	"encoding/json"
	"errors"

	"mcp-math/service"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	methodInitialized = "notifications/initialized"
	methodLogMessage  = "notifications/message"
	toolsLoggerName   = "tools"
)

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (t *Transport) dispatch(ctx context.Context, sess *Session, msg *Message) any {
	if msg.IsResponse() {
		return nil
	}
	if msg.IsNotification() {
		if msg.Method == methodInitialized {
			sess.markReady()
		}
		t.log.Debug().Str("session", sess.id).Str("method", msg.Method).Msg("notification received")
		return nil
	}

	id := msg.RequestID()
	switch mcp.MCPMethod(msg.Method) {
	case mcp.MethodPing:
		return newRPCResult(id, mcp.EmptyResult{})

	case mcp.MethodToolsList:
		return t.listTools(id)

	case mcp.MethodToolsCall:
		var params callToolParams
		if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
			return NewRPCError(id, mcp.INVALID_PARAMS, "tools/call requires a tool name and an argument object", nil)
		}
		text, err := t.invoke(ctx, sess, params.Name, params.Arguments)
		if err != nil {
			return toolErrorResponse(id, err)
		}
		result := mcp.NewToolResultText(text)
		if structured, ok := decodeObject(text); ok {
			result.StructuredContent = structured
		}
		return newRPCResult(id, result)
	}

	if !t.tools.Has(msg.Method) {
		return NewRPCError(id, mcp.METHOD_NOT_FOUND, "method not found: "+msg.Method, nil)
	}
	var args map[string]any
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &args); err != nil {
			return NewRPCError(id, mcp.INVALID_PARAMS, "params must be an object", nil)
		}
	}
	text, err := t.invoke(ctx, sess, msg.Method, args)
	if err != nil {
		return toolErrorResponse(id, err)
	}
	if structured, ok := decodeObject(text); ok {
		return newRPCResult(id, structured)
	}
	return newRPCResult(id, text)
}

func (t *Transport) listTools(id mcp.RequestId) any {
	result := mcp.ListToolsResult{Tools: []mcp.Tool{}}
	for desc := range t.tools.List() {
		tool, err := desc.MCPTool()
		if err != nil {
			t.log.Error().Err(err).Str("tool", desc.Name).Msg("render tool schema failed")
			return NewRPCError(id, mcp.INTERNAL_ERROR, "render tool schema failed", nil)
		}
		result.Tools = append(result.Tools, tool)
	}
	return newRPCResult(id, result)
}

func (t *Transport) invoke(ctx context.Context, sess *Session, name string, args map[string]any) (string, error) {
	text, err := t.tools.Invoke(ctx, name, args)

	level := mcp.LoggingLevelInfo
	data := map[string]any{"tool": name, "ok": err == nil}
	if err != nil {
		level = mcp.LoggingLevelError
		data["error"] = err.Error()
		t.log.Warn().Err(err).Str("session", sess.id).Str("tool", name).Msg("tool invocation failed")
	}
	if nerr := t.notify(sess, methodLogMessage, mcp.LoggingMessageNotificationParams{
		Level:  level,
		Logger: toolsLoggerName,
		Data:   data,
	}); nerr != nil {
		t.log.Error().Err(nerr).Msg("encode notification failed")
	}
	return text, err
}

func toolErrorResponse(id mcp.RequestId, err error) mcp.JSONRPCError {
	var toolErr *service.ToolError
	if !errors.As(err, &toolErr) {
		return NewRPCError(id, mcp.INTERNAL_ERROR, err.Error(), nil)
	}
	switch {
	case errors.Is(err, service.ErrUnknownTool):
		return NewRPCError(id, mcp.METHOD_NOT_FOUND, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidArguments):
		return NewRPCError(id, mcp.INVALID_PARAMS, err.Error(), nil)
	}

	var data any
	var backendErr *service.BackendError
	if errors.As(err, &backendErr) {
		data = map[string]any{
			"status":  backendErr.Status,
			"code":    backendErr.Code,
			"message": backendErr.Message,
		}
	}
	return NewRPCError(id, mcp.INTERNAL_ERROR, err.Error(), data)
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
