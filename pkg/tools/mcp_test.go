package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Varamadon/auto-refactor/pkg/plan"
)

type mockMCPClient struct {
	InitializeFunc func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallToolFunc   func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	CloseFunc      func() error

	calls  []mcp.CallToolRequest
	closed int
}

func (m *mockMCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m.calls = append(m.calls, request)
	if m.CallToolFunc != nil {
		return m.CallToolFunc(ctx, request)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "ok"}},
	}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func newMCPFixture(mock *mockMCPClient) (*MCPExecutor, *Registry, *[]string) {
	reg := NewRegistry()
	reg.Register("repo", "tool:7000")
	var dialed []string
	dial := func(ctx context.Context, location string) (MCPClient, error) {
		dialed = append(dialed, location)
		return mock, nil
	}
	return NewMCPExecutor(reg, dial), reg, &dialed
}

func TestMCPExecutor_Session(t *testing.T) {
	mock := &mockMCPClient{}
	mock.CallToolFunc = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if request.Params.Name == MCPToolNextFile {
			return textResult("class A {}"), nil
		}
		return textResult("done"), nil
	}
	e, reg, dialed := newMCPFixture(mock)
	ctx := context.Background()

	text, err := e.FetchNextFile(ctx, "repo")
	require.NoError(t, err)
	require.Equal(t, "class A {}", text)

	p := plan.ActionPlan{
		FileHash: plan.Fingerprint("class A {}"),
		Items:    plan.Items{plan.RenameMethod{Line: 1, OldName: "a", NewName: "b"}},
	}
	require.NoError(t, e.ApplyActionPlan(ctx, "repo", p))
	require.NoError(t, e.Finish(ctx, "repo"))

	// One connection for the whole session.
	require.Equal(t, []string{"http://tool:7000"}, *dialed)
	require.Equal(t, 1, mock.closed)
	_, ok := reg.Lookup("repo")
	require.False(t, ok)

	require.Len(t, mock.calls, 3)
	require.Equal(t, MCPToolNextFile, mock.calls[0].Params.Name)
	require.Equal(t, MCPToolApplyPlan, mock.calls[1].Params.Name)
	require.Equal(t, map[string]any{"plan": p}, mock.calls[1].Params.Arguments)
	require.Equal(t, MCPToolFinish, mock.calls[2].Params.Name)

	// Already finished.
	require.NoError(t, e.Finish(ctx, "repo"))
	require.Len(t, mock.calls, 3)
}

func TestMCPExecutor_ToolError(t *testing.T) {
	mock := &mockMCPClient{
		CallToolFunc: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res := textResult("repository locked")
			res.IsError = true
			return res, nil
		},
	}
	e, _, _ := newMCPFixture(mock)

	_, err := e.FetchNextFile(context.Background(), "repo")
	require.ErrorContains(t, err, "repository locked")
}

func TestMCPExecutor_InitializeFailure(t *testing.T) {
	mock := &mockMCPClient{
		InitializeFunc: func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
			return nil, errors.New("handshake refused")
		},
	}
	e, _, _ := newMCPFixture(mock)

	_, err := e.FetchNextFile(context.Background(), "repo")
	require.ErrorContains(t, err, "handshake refused")
	require.Equal(t, 1, mock.closed)
}

func TestMCPExecutor_Unregistered(t *testing.T) {
	e := NewMCPExecutor(NewRegistry(), func(ctx context.Context, location string) (MCPClient, error) {
		t.Fatal("unexpected dial")
		return nil, nil
	})

	_, err := e.FetchNextFile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrToolNotRegistered)
	require.NoError(t, e.Finish(context.Background(), "ghost"))
}

func TestTransportDialer(t *testing.T) {
	_, err := TransportDialer("carrier-pigeon")
	require.Error(t, err)

	for _, transport := range []string{"sse", "streamable_http"} {
		d, err := TransportDialer(transport)
		require.NoError(t, err)
		require.NotNil(t, d)
	}
}
