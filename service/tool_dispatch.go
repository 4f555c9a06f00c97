package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// ToolEndPoint is a model-callable function backed by a remote tool.
type ToolEndPoint struct {
	Name    string
	Def     openai.FunctionDefinition
	Handler func(ctx context.Context, args string) (string, error)
}

type ToolExecLog struct {
	ID           int
	ToolCallName string
	ToolCallArgs string
	ToolCallRes  string
	ToolCallErr  error
}

func (toolLog *ToolExecLog) Succeeded() bool {
	return toolLog.ToolCallErr == nil
}

func (toolLog *ToolExecLog) formatString() string {
	var builder strings.Builder
	builder.WriteString("** Status **\n")
	if toolLog.ToolCallErr != nil {
		builder.WriteString(fmt.Sprintf("Execute tool call failed, error: %s\n", toolLog.ToolCallErr))
	} else {
		builder.WriteString("Execute tool call success\n")
		builder.WriteString("** Result **\n")
		builder.WriteString(toolLog.ToolCallRes)
	}
	return builder.String()
}

type ToolDispatcher struct {
	order   []string
	toolMap map[string]ToolEndPoint
	toolLog []*ToolExecLog
}

func NewToolDispatcher() *ToolDispatcher {
	return &ToolDispatcher{
		toolMap: map[string]ToolEndPoint{},
	}
}

func (td *ToolDispatcher) ResetLog() {
	td.toolLog = nil
}

func (td *ToolDispatcher) Logs() []*ToolExecLog {
	return td.toolLog
}

func (td *ToolDispatcher) RegisterToolEndpoint(endpoints ...ToolEndPoint) error {
	err := []error{}
	for _, endpoint := range endpoints {
		_, exist := td.toolMap[endpoint.Name]
		if exist {
			err = append(err, fmt.Errorf("tool with name %s already exist", endpoint.Name))
		} else {
			td.toolMap[endpoint.Name] = endpoint
			td.order = append(td.order, endpoint.Name)
		}
	}
	return errors.Join(err...)
}

// Run executes one model tool call. Failures are recorded in the returned
// log entry and in the tool message content, never as a success.
func (td *ToolDispatcher) Run(ctx context.Context, toolCall openai.ToolCall) (openai.ChatCompletionMessage, *ToolExecLog) {
	endpoint, exist := td.toolMap[toolCall.Function.Name]
	res := openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: toolCall.ID,
	}
	content := ""
	var err error
	if exist {
		content, err = endpoint.Handler(ctx, toolCall.Function.Arguments)
	} else {
		err = fmt.Errorf("Run tool call failed, Can not find tool with name %s", toolCall.Function.Name)
	}
	execLog := &ToolExecLog{
		ID:           len(td.toolLog),
		ToolCallName: toolCall.Function.Name,
		ToolCallArgs: toolCall.Function.Arguments,
		ToolCallRes:  content,
		ToolCallErr:  err,
	}
	if err != nil {
		log.Warn().Err(err).Str("tool", toolCall.Function.Name).Msg("tool call failed")
	}
	td.toolLog = append(td.toolLog, execLog)
	res.Content = execLog.formatString()
	return res, execLog
}

func (td *ToolDispatcher) GetTools() []openai.Tool {
	res := make([]openai.Tool, 0, len(td.order))
	for _, name := range td.order {
		endpoint := td.toolMap[name]
		res = append(res, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &endpoint.Def,
		})
	}
	return res
}

func (td *ToolDispatcher) ToolNames() []string {
	return append([]string(nil), td.order...)
}
