package service

import (
	"context"
	"iter"

	"mcp-math/shared"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
)

type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

type ToolDescriptor struct {
	Name        string
	Title       string
	Description string
	Schema      Schema
	Handler     ToolHandler
}

// FunctionDefinition renders the descriptor for a function-calling model.
func (d ToolDescriptor) FunctionDefinition() openai.FunctionDefinition {
	return openai.FunctionDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Schema.Definition(),
	}
}

// MCPTool renders the descriptor as advertised by tools/list.
func (d ToolDescriptor) MCPTool() (mcp.Tool, error) {
	tool, err := shared.ConvertToMcpTool(d.FunctionDefinition())
	if err != nil {
		return mcp.Tool{}, err
	}
	tool.Annotations.Title = d.Title
	return tool, nil
}

// Registry holds the callable tools. It is built once at startup and only
// read afterwards, so it carries no lock.
type Registry struct {
	order []string
	tools map[string]ToolDescriptor
}

func NewRegistry() *Registry {
	return &Registry{
		tools: map[string]ToolDescriptor{},
	}
}

func (r *Registry) Register(name, description string, schema Schema, handler ToolHandler) error {
	return r.RegisterDescriptor(ToolDescriptor{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler:     handler,
	})
}

func (r *Registry) RegisterDescriptor(desc ToolDescriptor) error {
	if desc.Name == "" || desc.Handler == nil {
		return &ConfigError{Kind: ErrInvalidDescriptor, Name: desc.Name}
	}
	if _, exist := r.tools[desc.Name]; exist {
		return &ConfigError{Kind: ErrDuplicateName, Name: desc.Name}
	}
	r.tools[desc.Name] = desc
	r.order = append(r.order, desc.Name)
	return nil
}

// List yields descriptors in registration order. Every call starts over.
func (r *Registry) List() iter.Seq[ToolDescriptor] {
	return func(yield func(ToolDescriptor) bool) {
		for _, name := range r.order {
			if !yield(r.tools[name]) {
				return
			}
		}
	}
}

func (r *Registry) Has(name string) bool {
	_, exist := r.tools[name]
	return exist
}

func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	desc, exist := r.tools[name]
	if !exist {
		return "", &ToolError{Kind: ErrUnknownTool, Tool: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := desc.Schema.Validate(args); err != nil {
		return "", &ToolError{Kind: ErrInvalidArguments, Tool: name, Cause: err}
	}
	res, err := desc.Handler(ctx, args)
	if err != nil {
		return "", &ToolError{Kind: ErrHandlerFailed, Tool: name, Cause: err}
	}
	return res, nil
}
