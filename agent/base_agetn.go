package agent

import (
	"context"
	"errors"

	"mcp-math/service"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

var ErrNoChoices = errors.New("model returned no choices")

type BaseAgent struct {
	input        []openai.ChatCompletionMessage
	toolDispatch *service.ToolDispatcher
}

func NewBaseAgent(instruct string, userInput string, tools *service.ToolDispatcher) *BaseAgent {
	input := []openai.ChatCompletionMessage{}
	if instruct != "" {
		input = append(input, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instruct})
	}
	input = append(input, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userInput})
	return &BaseAgent{
		input:        input,
		toolDispatch: tools,
	}
}

func (a *BaseAgent) chat(ctx context.Context, client *openai.Client, model string) (*openai.ChatCompletionChoice, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: a.input,
		Tools:    a.toolDispatch.GetTools(),
	}
	response, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &response.Choices[0], nil
}

func (a *BaseAgent) handleToolCall(ctx context.Context, toolCalls []openai.ToolCall) []*service.ToolExecLog {
	runs := make([]*service.ToolExecLog, 0, len(toolCalls))
	for _, call := range toolCalls {
		_, execLog := a.toolDispatch.Run(ctx, call)
		log.Debug().
			Str("tool", call.Function.Name).
			Str("args", call.Function.Arguments).
			Bool("ok", execLog.Succeeded()).
			Msg("tool call")
		runs = append(runs, execLog)
	}
	return runs
}

// Run does one model round trip. Tool calls proposed by the model are
// executed once; their output is not sent back to the model.
func (a *BaseAgent) Run(ctx context.Context, client *openai.Client, model string) (*Answer, error) {
	resp, err := a.chat(ctx, client, model)
	if err != nil {
		log.Error().Err(err).Msg("chat failed")
		return nil, err
	}
	answer := &Answer{Content: resp.Message.Content}
	if len(resp.Message.ToolCalls) > 0 {
		answer.ToolRuns = a.handleToolCall(ctx, resp.Message.ToolCalls)
	}
	return answer, nil
}
