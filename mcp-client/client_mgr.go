package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mcp-math/service"
	"mcp-math/shared"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
)

const (
	clientName    = "mcp-math-client"
	clientVersion = "1.0.0"
)

// ClientMgr keeps one initialized MCP session per remote server, keyed by
// the server name reported during the handshake.
type ClientMgr struct {
	order     []string
	clientMap map[string]*client.Client
}

func NewclientMgr() *ClientMgr {
	return &ClientMgr{
		clientMap: map[string]*client.Client{},
	}
}

func (mgr *ClientMgr) CloseByName(name string) error {
	client, exist := mgr.clientMap[name]
	if !exist {
		return fmt.Errorf("client %s not exist", name)
	}
	err := client.Close()
	if err != nil {
		return err
	}
	delete(mgr.clientMap, name)
	for i, n := range mgr.order {
		if n == name {
			mgr.order = append(mgr.order[:i], mgr.order[i+1:]...)
			break
		}
	}
	return nil
}

func (mgr *ClientMgr) Close() error {
	var errList []error = nil
	for _, client := range mgr.clientMap {
		err := client.Close()
		if err != nil {
			errList = append(errList, err)
		}
	}
	mgr.clientMap = map[string]*client.Client{}
	mgr.order = nil
	return errors.Join(errList...)
}

// NewMCPClient opens a streamable HTTP session against url and returns the
// server name it registered under.
func (mgr *ClientMgr) NewMCPClient(ctx context.Context, url string) (string, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return "", err
	}
	if err := c.Start(ctx); err != nil {
		return "", err
	}
	res, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		c.Close()
		return "", fmt.Errorf("initialize %s: %w", url, err)
	}
	name := res.ServerInfo.Name
	_, exist := mgr.clientMap[name]
	if exist {
		c.Close()
		return "", fmt.Errorf("mcp server %s already exist", name)
	}
	mgr.clientMap[name] = c
	mgr.order = append(mgr.order, name)
	log.Info().Str("server", name).Str("url", url).Msg("connected to mcp server")
	return name, nil
}

func (mgr *ClientMgr) LoadAllTools(ctx context.Context) ([]service.ToolEndPoint, error) {
	var endpoint []service.ToolEndPoint
	var errorList []error
	for _, name := range mgr.order {
		res, err := mgr.loadTools(ctx, mgr.clientMap[name])
		if err != nil {
			errorList = append(errorList, fmt.Errorf("list tools of %s: %w", name, err))
		} else {
			endpoint = append(endpoint, res...)
		}
	}
	err := errors.Join(errorList...)
	if err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (mgr *ClientMgr) loadTools(ctx context.Context, c *client.Client) ([]service.ToolEndPoint, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	endpointList := []service.ToolEndPoint{}
	for _, tool := range res.Tools {
		endpoint := service.ToolEndPoint{
			Name: tool.Name,
			Def:  shared.ConvertToFunctionDefinition(tool),
			Handler: func(ctx context.Context, args string) (string, error) {
				return callTool(ctx, c, tool.Name, args)
			},
		}
		endpointList = append(endpointList, endpoint)
	}
	return endpointList, nil
}

// callTool runs one remote tool. An RPC error or an isError result is
// returned as an error.
func callTool(ctx context.Context, c *client.Client, name string, args string) (string, error) {
	arguments := map[string]any{}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &arguments); err != nil {
			return "", fmt.Errorf("tool %s: arguments are not a JSON object: %w", name, err)
		}
	}
	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return "", err
	}
	var texts []string
	for _, content := range res.Content {
		text, ok := mcp.AsTextContent(content)
		if ok {
			texts = append(texts, text.Text)
		}
	}
	output := strings.Join(texts, "\n")
	if res.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", name, output)
	}
	return output, nil
}
