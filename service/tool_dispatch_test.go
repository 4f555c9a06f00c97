package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDispatcher(t *testing.T) {
	td := NewToolDispatcher()
	require.NoError(t, td.RegisterToolEndpoint(
		ToolEndPoint{
			Name: "add",
			Def:  openai.FunctionDefinition{Name: "add"},
			Handler: func(_ context.Context, args string) (string, error) {
				return `{"result":5}`, nil
			},
		},
		ToolEndPoint{
			Name: "multiply",
			Def:  openai.FunctionDefinition{Name: "multiply"},
			Handler: func(_ context.Context, args string) (string, error) {
				return "", errors.New("rpc error: tool handler failed")
			},
		},
	))

	t.Run("duplicate endpoint", func(t *testing.T) {
		err := td.RegisterToolEndpoint(ToolEndPoint{Name: "add"})
		assert.ErrorContains(t, err, "already exist")
	})

	t.Run("tools keep registration order", func(t *testing.T) {
		tools := td.GetTools()
		require.Len(t, tools, 2)
		assert.Equal(t, "add", tools[0].Function.Name)
		assert.Equal(t, "multiply", tools[1].Function.Name)
	})

	t.Run("success", func(t *testing.T) {
		msg, execLog := td.Run(context.Background(), openai.ToolCall{
			ID:       "call-1",
			Function: openai.FunctionCall{Name: "add", Arguments: `{"a":2,"b":3}`},
		})
		assert.True(t, execLog.Succeeded())
		assert.Equal(t, openai.ChatMessageRoleTool, msg.Role)
		assert.Equal(t, "call-1", msg.ToolCallID)
		assert.Contains(t, msg.Content, `{"result":5}`)
	})

	t.Run("rpc error is a failed call", func(t *testing.T) {
		msg, execLog := td.Run(context.Background(), openai.ToolCall{
			Function: openai.FunctionCall{Name: "multiply", Arguments: `{}`},
		})
		assert.False(t, execLog.Succeeded())
		assert.Contains(t, msg.Content, "Execute tool call failed")
		assert.NotContains(t, msg.Content, "** Result **")
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, execLog := td.Run(context.Background(), openai.ToolCall{
			Function: openai.FunctionCall{Name: "divide"},
		})
		assert.False(t, execLog.Succeeded())
	})

	assert.Len(t, td.Logs(), 3)
	td.ResetLog()
	assert.Empty(t, td.Logs())
}
