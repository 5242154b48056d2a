package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/logger"
	"github.com/Varamadon/auto-refactor/pkg/plan"
)

// Names of the tools an MCP refactoring server exposes.
const (
	MCPToolNextFile  = "next_file"
	MCPToolApplyPlan = "apply_action_plan"
	MCPToolFinish    = "finish"
)

// MCPClient is the subset of an MCP client the executor uses.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer connects to the MCP server at location. The returned client must
// be ready for Initialize.
type Dialer func(ctx context.Context, location string) (MCPClient, error)

// MCPExecutor sends session commands as MCP tool calls to the registered
// server. Each session gets its own client, opened on first use and closed
// by Finish.
type MCPExecutor struct {
	registry *Registry
	dial     Dialer

	mu      sync.Mutex
	clients map[string]MCPClient
}

func NewMCPExecutor(registry *Registry, dial Dialer) *MCPExecutor {
	return &MCPExecutor{
		registry: registry,
		dial:     dial,
		clients:  make(map[string]MCPClient),
	}
}

// TransportDialer returns a Dialer for the configured MCP transport.
func TransportDialer(transport string) (Dialer, error) {
	switch transport {
	case config.MCPTransportSSE:
		return func(ctx context.Context, location string) (MCPClient, error) {
			c, err := client.NewSSEMCPClient(location + "/sse")
			if err != nil {
				return nil, err
			}
			return startClient(ctx, c)
		}, nil
	case config.MCPTransportStreamableHTTP, "":
		return func(ctx context.Context, location string) (MCPClient, error) {
			c, err := client.NewStreamableHttpClient(location + "/mcp")
			if err != nil {
				return nil, err
			}
			return startClient(ctx, c)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported mcp transport %q", transport)
	}
}

func startClient(ctx context.Context, c *client.Client) (MCPClient, error) {
	// The transport outlives the request that opened it.
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, err
	}
	return c, nil
}

func (e *MCPExecutor) FetchNextFile(ctx context.Context, sessionID string) (string, error) {
	c, err := e.client(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return callTool(ctx, c, MCPToolNextFile, nil)
}

func (e *MCPExecutor) ApplyActionPlan(ctx context.Context, sessionID string, p plan.ActionPlan) error {
	c, err := e.client(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = callTool(ctx, c, MCPToolApplyPlan, map[string]any{"plan": p})
	return err
}

// Finish calls the finish tool, closes the session's client and forgets
// the session. Unregistered sessions are a no-op.
func (e *MCPExecutor) Finish(ctx context.Context, sessionID string) error {
	c, err := e.client(ctx, sessionID)
	if errors.Is(err, ErrToolNotRegistered) {
		return nil
	}

	e.mu.Lock()
	delete(e.clients, sessionID)
	e.mu.Unlock()
	e.registry.Remove(sessionID)

	if err != nil {
		return err
	}
	_, callErr := callTool(ctx, c, MCPToolFinish, nil)
	return errors.Join(callErr, c.Close())
}

// client returns the session's client, dialing and initializing it on first
// use.
func (e *MCPExecutor) client(ctx context.Context, sessionID string) (MCPClient, error) {
	loc, err := e.registry.location(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[sessionID]; ok {
		return c, nil
	}

	c, err := e.dial(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", loc, err)
	}
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "autorefactor", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after init failure", "error", cerr)
		}
		return nil, fmt.Errorf("initialize %s: %w", loc, err)
	}
	logger.L.Info("MCP tool connected", "session_id", sessionID, "location", loc)

	e.clients[sessionID] = c
	return c, nil
}

// callTool calls a tool and returns its first text content. Results flagged
// IsError become errors.
func callTool(ctx context.Context, c MCPClient, name string, args map[string]any) (string, error) {
	logger.L.Debug("calling MCP tool", "tool", name)
	if args == nil {
		args = map[string]any{}
	}
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := c.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}

	var text string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	if result.IsError {
		if text == "" {
			text = "tool execution resulted in an error without specific text"
		}
		return "", fmt.Errorf("call %s: %s", name, text)
	}
	return text, nil
}
