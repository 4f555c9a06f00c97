package shared

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaConversion(t *testing.T) {
	t.Run("function definition to mcp tool", func(t *testing.T) {
		def := openai.FunctionDefinition{
			Name:        "add",
			Description: "Add two numbers",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"a": {Type: jsonschema.Number},
				},
				Required: []string{"a"},
			},
		}
		tool, err := ConvertToMcpTool(def)
		require.NoError(t, err)
		assert.Equal(t, "add", tool.Name)
		assert.JSONEq(t, `{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`, string(tool.RawInputSchema))
	})

	t.Run("mcp tool to function definition", func(t *testing.T) {
		tool := mcp.NewTool("multiply",
			mcp.WithDescription("Multiply two numbers"),
			mcp.WithNumber("a", mcp.Required()),
		)
		def := ConvertToFunctionDefinition(tool)
		assert.Equal(t, "multiply", def.Name)
		data, err := json.Marshal(def.Parameters)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`, string(data))
	})

	t.Run("missing schema becomes empty object", func(t *testing.T) {
		def := ConvertToFunctionDefinition(mcp.Tool{Name: "noop"})
		data, err := json.Marshal(def.Parameters)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"object","properties":{}}`, string(data))
	})
}
