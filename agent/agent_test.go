package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mcp-math/agent"
	mcpclient "mcp-math/mcp-client"
	mcpserver "mcp-math/mcp-server"
	"mcp-math/service"
	"mcp-math/shared"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel answers every chat completion with a fixed assistant message
// and keeps the last request it saw.
type fakeModel struct {
	mu      sync.Mutex
	last    openai.ChatCompletionRequest
	reply   openai.ChatCompletionMessage
	choices bool
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := json.NewDecoder(r.Body).Decode(&m.last); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := openai.ChatCompletionResponse{
		ID:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  m.last.Model,
	}
	if m.choices {
		resp.Choices = []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      m.reply,
			FinishReason: openai.FinishReasonToolCalls,
		}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *fakeModel) request() openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func newClient(t *testing.T, model *fakeModel) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(model)
	t.Cleanup(srv.Close)
	return agent.NewOpenAIClient(shared.ChatConfig{BaseURL: srv.URL + "/v1", APIKey: "test"})
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func stubEndpoint(name string, handler func(ctx context.Context, args string) (string, error)) service.ToolEndPoint {
	return service.ToolEndPoint{
		Name: name,
		Def: openai.FunctionDefinition{
			Name:        name,
			Description: "stub " + name,
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
		Handler: handler,
	}
}

func TestAskWithoutToolCalls(t *testing.T) {
	model := &fakeModel{
		choices: true,
		reply:   openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "132901290"},
	}
	a := agent.NewAgent(newClient(t, model), "qwen3:1.7b")
	called := false
	require.NoError(t, a.AddTools([]service.ToolEndPoint{
		stubEndpoint("add", func(ctx context.Context, args string) (string, error) {
			called = true
			return "", nil
		}),
	}))

	answer, err := a.Ask(context.Background(), "What is 45432542 plus 87468748?")
	require.NoError(t, err)
	assert.False(t, answer.UsedTools())
	assert.False(t, called)
	assert.Equal(t, "132901290", answer.String())

	req := model.request()
	assert.Equal(t, "qwen3:1.7b", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "add", req.Tools[0].Function.Name)
}

func TestAskRunsEveryToolCall(t *testing.T) {
	model := &fakeModel{
		choices: true,
		reply: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{
				toolCall("call_1", "add", `{"a":1,"b":2}`),
				toolCall("call_2", "broken", `{}`),
				toolCall("call_3", "missing", `{}`),
			},
		},
	}
	a := agent.NewAgent(newClient(t, model), "m").WithInstruction("use the tools")
	require.NoError(t, a.AddTools([]service.ToolEndPoint{
		stubEndpoint("add", func(ctx context.Context, args string) (string, error) {
			return "3", nil
		}),
		stubEndpoint("broken", func(ctx context.Context, args string) (string, error) {
			return "", errors.New("backend down")
		}),
	}))

	answer, err := a.Ask(context.Background(), "add 1 and 2")
	require.NoError(t, err)
	require.Len(t, answer.ToolRuns, 3)
	assert.True(t, answer.Failed())

	assert.Equal(t, "add", answer.ToolRuns[0].ToolCallName)
	assert.Equal(t, `{"a":1,"b":2}`, answer.ToolRuns[0].ToolCallArgs)
	assert.Equal(t, "3", answer.ToolRuns[0].ToolCallRes)
	assert.True(t, answer.ToolRuns[0].Succeeded())

	assert.EqualError(t, answer.ToolRuns[1].ToolCallErr, "backend down")
	assert.Error(t, answer.ToolRuns[2].ToolCallErr)

	out := answer.String()
	assert.Contains(t, out, "Tool: add\nArgs: {\"a\":1,\"b\":2}\nTool output: 3\n")
	assert.Contains(t, out, "Tool failed: backend down")

	req := model.request()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "use the tools", req.Messages[0].Content)
}

func TestAskErrors(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		a := agent.NewAgent(newClient(t, &fakeModel{}), "m")
		_, err := a.Ask(context.Background(), "hi")
		assert.ErrorIs(t, err, agent.ErrNoChoices)
	})

	t.Run("model unreachable", func(t *testing.T) {
		client := agent.NewOpenAIClient(shared.ChatConfig{BaseURL: "http://127.0.0.1:1/v1", APIKey: "test"})
		_, err := agent.NewAgent(client, "m").Ask(context.Background(), "hi")
		assert.Error(t, err)
	})

	t.Run("duplicate tool", func(t *testing.T) {
		a := agent.NewAgent(newClient(t, &fakeModel{}), "m")
		noop := func(ctx context.Context, args string) (string, error) { return "", nil }
		err := a.AddTools([]service.ToolEndPoint{stubEndpoint("add", noop), stubEndpoint("add", noop)})
		assert.ErrorContains(t, err, "already exist")
		assert.Equal(t, []string{"add"}, a.ToolNames())
	})
}

func TestAskThroughMCPServer(t *testing.T) {
	ctx := context.Background()
	math := httptest.NewServer(service.NewMathAPIHandler())
	t.Cleanup(math.Close)

	front := httptest.NewUnstartedServer(nil)
	front.Start()
	t.Cleanup(front.Close)
	cfg := shared.DefaultConfig()
	cfg.MathAPI.BaseURL = math.URL
	cfg.Server.AllowedHosts = []string{front.Listener.Addr().String()}
	server, err := mcpserver.NewServer(cfg)
	require.NoError(t, err)
	front.Config.Handler = server.Handler()

	mgr := mcpclient.NewclientMgr()
	t.Cleanup(func() { mgr.Close() })
	_, err = mgr.NewMCPClient(ctx, front.URL+"/mcp")
	require.NoError(t, err)
	endpoints, err := mgr.LoadAllTools(ctx)
	require.NoError(t, err)

	model := &fakeModel{
		choices: true,
		reply: openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{toolCall("call_1", "add", `{"a":45432542,"b":87468748}`)},
		},
	}
	a := agent.NewAgent(newClient(t, model), "m")
	require.NoError(t, a.AddTools(endpoints))
	assert.Equal(t, []string{"add", "multiply"}, a.ToolNames())

	answer, err := a.Ask(ctx, "What is 45432542 plus 87468748?")
	require.NoError(t, err)
	require.Len(t, answer.ToolRuns, 1)
	require.NoError(t, answer.ToolRuns[0].ToolCallErr)
	assert.JSONEq(t, `{"operation":"add","a":45432542,"b":87468748,"result":132901290}`, answer.ToolRuns[0].ToolCallRes)

	req := model.request()
	require.Len(t, req.Tools, 2)
	params, err := json.Marshal(req.Tools[1].Function.Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"a":{"type":"number","description":"The first number"},"b":{"type":"number","description":"The second number"}},"required":["a","b"]}`, string(params))
}
