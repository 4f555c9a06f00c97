package shared

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

func ConvertToMcpTool(def openai.FunctionDefinition) (mcp.Tool, error) {

	data, err := json.Marshal(def.Parameters)
	if err != nil {
		return mcp.Tool{}, err
	}

	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, data)
	return tool, nil
}

// ConvertToFunctionDefinition renders a remote tool as a function the chat
// model can call. Tools without an input schema get an empty object schema.
func ConvertToFunctionDefinition(tool mcp.Tool) openai.FunctionDefinition {
	def := openai.FunctionDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  emptyObjectSchema,
	}
	if tool.RawInputSchema != nil {
		def.Parameters = tool.RawInputSchema
		return def
	}
	if tool.InputSchema.Type == "" {
		return def
	}
	data, err := json.Marshal(tool.InputSchema)
	if err == nil {
		def.Parameters = json.RawMessage(data)
	}
	return def
}
