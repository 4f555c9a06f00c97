package agent

import (
	"context"
	"fmt"
	"strings"

	"mcp-math/service"
	"mcp-math/shared"

	"github.com/sashabaranov/go-openai"
)

// Answer is the outcome of one prompt. When the model proposed no tool
// calls Content is the answer; otherwise ToolRuns holds every call in order.
type Answer struct {
	Content  string
	ToolRuns []*service.ToolExecLog
}

func (a *Answer) UsedTools() bool {
	return len(a.ToolRuns) > 0
}

// Failed reports whether any tool call did not succeed.
func (a *Answer) Failed() bool {
	for _, run := range a.ToolRuns {
		if !run.Succeeded() {
			return true
		}
	}
	return false
}

func (a *Answer) String() string {
	if !a.UsedTools() {
		return a.Content
	}
	var builder strings.Builder
	for _, run := range a.ToolRuns {
		builder.WriteString(fmt.Sprintf("Tool: %s\n", run.ToolCallName))
		builder.WriteString(fmt.Sprintf("Args: %s\n", run.ToolCallArgs))
		if run.Succeeded() {
			builder.WriteString(fmt.Sprintf("Tool output: %s\n", run.ToolCallRes))
		} else {
			builder.WriteString(fmt.Sprintf("Tool failed: %s\n", run.ToolCallErr))
		}
	}
	return builder.String()
}

func NewOpenAIClient(cfg shared.ChatConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(config)
}

// ToolAgent hands a prompt and the remote tool catalog to a chat model and
// executes whichever tools it picks.
type ToolAgent struct {
	client       *openai.Client
	model        string
	instruct     string
	toolDispatch *service.ToolDispatcher
}

func NewAgent(client *openai.Client, model string) *ToolAgent {
	return &ToolAgent{
		client:       client,
		model:        model,
		toolDispatch: service.NewToolDispatcher(),
	}
}

func (a *ToolAgent) WithInstruction(instruct string) *ToolAgent {
	a.instruct = instruct
	return a
}

func (a *ToolAgent) AddTools(endpoints []service.ToolEndPoint) error {
	err := a.toolDispatch.RegisterToolEndpoint(endpoints...)
	if err != nil {
		return err
	}
	return nil
}

func (a *ToolAgent) ToolNames() []string {
	return a.toolDispatch.ToolNames()
}

func (a *ToolAgent) Ask(ctx context.Context, prompt string) (*Answer, error) {
	a.toolDispatch.ResetLog()
	return NewBaseAgent(a.instruct, prompt, a.toolDispatch).Run(ctx, a.client, a.model)
}
