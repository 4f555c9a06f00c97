package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mcp-math/shared"

	"github.com/rs/zerolog/log"
)

// MathClient calls the arithmetic backend. It holds no per-session state and
// is shared by every session.
type MathClient struct {
	baseURL string
	http    *http.Client
}

func NewMathClient(baseURL string, timeout time.Duration) *MathClient {
	return &MathClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Call posts body as JSON to path and decodes the JSON reply. A non-2xx
// status is returned as *BackendError. There are no retries.
func (c *MathClient) Call(ctx context.Context, path string, body any) (map[string]any, error) {
	if body == nil {
		body = map[string]any{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("math api %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("math api %s: read body: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody shared.MathErrorBody
		_ = json.Unmarshal(data, &errBody)
		log.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("math api call failed")
		return nil, &BackendError{
			Status:  resp.StatusCode,
			Code:    errBody.Error,
			Message: fmt.Sprintf("Math API %s failed: %d %s: %s", path, resp.StatusCode, http.StatusText(resp.StatusCode), string(data)),
		}
	}

	var res map[string]any
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("math api %s: decode body: %w", path, err)
	}
	return res, nil
}

func (c *MathClient) Add(ctx context.Context, a, b any) (map[string]any, error) {
	return c.Call(ctx, "/add", map[string]any{"a": a, "b": b})
}

func (c *MathClient) Multiply(ctx context.Context, a, b any) (map[string]any, error) {
	return c.Call(ctx, "/multiply", map[string]any{"a": a, "b": b})
}
