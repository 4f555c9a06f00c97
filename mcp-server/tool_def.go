package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"mcp-math/service"
	"mcp-math/shared"
)

var operandSchema = service.NewSchema(
	service.Field{Name: "a", Kind: service.KindNumber, Description: "The first number", Required: true},
	service.Field{Name: "b", Kind: service.KindNumber, Description: "The second number", Required: true},
)

func bindOperands(args map[string]any) (shared.OperandArgs, error) {
	var res shared.OperandArgs
	data, err := json.Marshal(args)
	if err != nil {
		return res, err
	}
	err = json.Unmarshal(data, &res)
	return res, err
}

func (s *Server) addTool() service.ToolDescriptor {
	return service.ToolDescriptor{
		Name:        "add",
		Title:       "Add two numbers",
		Description: "Calls the Math API /add endpoint",
		Schema:      operandSchema,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			operands, err := bindOperands(args)
			if err != nil {
				return "", err
			}
			res, err := s.math.Add(ctx, operands.A, operands.B)
			if err != nil {
				return "", err
			}
			return marshalResult(res)
		},
	}
}

func (s *Server) multiplyTool() service.ToolDescriptor {
	return service.ToolDescriptor{
		Name:        "multiply",
		Title:       "Multiply two numbers",
		Description: "Calls the Math API /multiply endpoint",
		Schema:      operandSchema,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			operands, err := bindOperands(args)
			if err != nil {
				return "", err
			}
			res, err := s.math.Multiply(ctx, operands.A, operands.B)
			if err != nil {
				return "", err
			}
			return marshalResult(res)
		},
	}
}

func marshalResult(res map[string]any) (string, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode math result: %w", err)
	}
	return string(data), nil
}
