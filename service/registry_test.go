package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var operandSchema = NewSchema(
	Field{Name: "a", Kind: KindNumber, Required: true},
	Field{Name: "b", Kind: KindNumber, Required: true},
)

func sumHandler(_ context.Context, args map[string]any) (string, error) {
	return fmt.Sprintf("%g", args["a"].(float64)+args["b"].(float64)), nil
}

func TestRegistry(t *testing.T) {
	t.Run("register and invoke", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("add", "Add two numbers", operandSchema, sumHandler))

		res, err := reg.Invoke(context.Background(), "add", map[string]any{"a": 2.0, "b": 3.0})
		require.NoError(t, err)
		assert.Equal(t, "5", res)

		res, err = reg.Invoke(context.Background(), "add", map[string]any{"a": -1.0, "b": 1.0})
		require.NoError(t, err)
		assert.Equal(t, "0", res)
	})

	t.Run("duplicate name", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("add", "", operandSchema, sumHandler))
		err := reg.Register("add", "", operandSchema, sumHandler)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorIs(t, err, ErrDuplicateName)
		assert.Equal(t, "add", cfgErr.Name)
	})

	t.Run("malformed descriptor", func(t *testing.T) {
		reg := NewRegistry()
		for _, err := range []error{
			reg.Register("", "", operandSchema, sumHandler),
			reg.Register("add", "", operandSchema, nil),
		} {
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
			assert.NotErrorIs(t, err, ErrInvalidArguments)
		}
		assert.False(t, reg.Has("add"))
	})

	t.Run("unknown tool", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Invoke(context.Background(), "divide", nil)
		assert.ErrorIs(t, err, ErrUnknownTool)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("add", "", operandSchema, sumHandler))

		cases := []map[string]any{
			{"a": 1.0},
			{"a": "x", "b": 1.0},
			{"a": 1.0, "b": 2.0, "c": 3.0},
			nil,
		}
		for _, args := range cases {
			_, err := reg.Invoke(context.Background(), "add", args)
			assert.ErrorIs(t, err, ErrInvalidArguments, "args %v", args)
		}
	})

	t.Run("handler failure is wrapped", func(t *testing.T) {
		backendErr := &BackendError{Status: 400, Code: "bad", Message: "boom"}
		reg := NewRegistry()
		require.NoError(t, reg.Register("fail", "", NewSchema(), func(context.Context, map[string]any) (string, error) {
			return "", backendErr
		}))

		_, err := reg.Invoke(context.Background(), "fail", map[string]any{})
		assert.ErrorIs(t, err, ErrHandlerFailed)
		var got *BackendError
		require.True(t, errors.As(err, &got))
		assert.Equal(t, 400, got.Status)
	})

	t.Run("list is ordered and restartable", func(t *testing.T) {
		reg := NewRegistry()
		for _, name := range []string{"multiply", "add", "subtract"} {
			require.NoError(t, reg.Register(name, "", NewSchema(), sumHandler))
		}
		collect := func() []string {
			var names []string
			for desc := range reg.List() {
				names = append(names, desc.Name)
			}
			return names
		}
		assert.Equal(t, []string{"multiply", "add", "subtract"}, collect())
		assert.Equal(t, collect(), collect())

		var first string
		for desc := range reg.List() {
			first = desc.Name
			break
		}
		assert.Equal(t, "multiply", first)
	})
}

func TestSchema(t *testing.T) {
	schema := NewSchema(
		Field{Name: "count", Kind: KindInteger, Required: true},
		Field{Name: "label", Kind: KindString},
		Field{Name: "dry", Kind: KindBoolean},
	)

	assert.NoError(t, schema.Validate(map[string]any{"count": 3.0}))
	assert.NoError(t, schema.Validate(map[string]any{"count": 3.0, "label": "x", "dry": true}))
	assert.Error(t, schema.Validate(map[string]any{"count": 3.5}))
	assert.Error(t, schema.Validate(map[string]any{"count": 1.0, "dry": "yes"}))

	t.Run("mcp tool advertisement", func(t *testing.T) {
		desc := ToolDescriptor{Name: "add", Title: "Add two numbers", Description: "adds", Schema: operandSchema}
		tool, err := desc.MCPTool()
		require.NoError(t, err)
		assert.Equal(t, "Add two numbers", tool.Annotations.Title)
		assert.JSONEq(t, `{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}},"required":["a","b"]}`, string(tool.RawInputSchema))
	})
}

func TestRegistryBackendRejection(t *testing.T) {
	srv := httptest.NewServer(NewMathAPIHandler())
	defer srv.Close()
	client := NewMathClient(srv.URL, 0)

	passThrough := NewSchema(
		Field{Name: "a", Kind: KindString, Required: true},
		Field{Name: "b", Kind: KindNumber, Required: true},
	)
	reg := NewRegistry()
	require.NoError(t, reg.Register("add", "", passThrough, func(ctx context.Context, args map[string]any) (string, error) {
		res, err := client.Add(ctx, args["a"], args["b"])
		if err != nil {
			return "", err
		}
		return fmt.Sprint(res["result"]), nil
	}))

	out, err := reg.Invoke(context.Background(), "add", map[string]any{"a": "x", "b": 1.0})
	assert.Empty(t, out)
	assert.ErrorIs(t, err, ErrHandlerFailed)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusBadRequest, backendErr.Status)
	assert.Equal(t, "Both a and b must be numbers", backendErr.Code)
}
