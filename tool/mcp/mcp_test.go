package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/datacrew/script"
	"github.com/antgroup/datacrew/tool"
)

type recordTool struct {
	inputs []string
	out    string
	err    error
}

func (r *recordTool) Name() string        { return "Starlark Data Code Executor" }
func (r *recordTool) Description() string { return "runs code" }
func (r *recordTool) Strict() bool        { return true }
func (r *recordTool) Schema() *tool.PropertiesSchema {
	return &tool.PropertiesSchema{
		Type: tool.TypeJson,
		Properties: map[string]tool.PropertySchema{
			"code":  {Type: tool.TypeString, Description: "source"},
			"limit": {Type: tool.TypeInt, Description: "rows"},
		},
		Required: []string{"code"},
	}
}

func (r *recordTool) Call(_ context.Context, input string) (string, error) {
	r.inputs = append(r.inputs, input)
	return r.out, r.err
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "starlark_data_code_executor"
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "starlark_data_code_executor", ToolName("Starlark Data Code Executor"))
	assert.Equal(t, "starlark_plotting_tool", ToolName("  Starlark Plotting-Tool "))
}

func TestDefinition(t *testing.T) {
	def := Definition(&recordTool{})
	assert.Equal(t, "starlark_data_code_executor", def.Name)
	assert.Equal(t, "runs code", def.Description)
	assert.Equal(t, []string{"code"}, def.InputSchema.Required)
	assert.Contains(t, def.InputSchema.Properties, "code")
	assert.Contains(t, def.InputSchema.Properties, "limit")
}

func TestHandler(t *testing.T) {
	rt := &recordTool{out: "42"}
	res, err := Handler(rt)(context.Background(), callRequest(map[string]any{"code": "return_value = 42"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "42", text(t, res))
	assert.Equal(t, []string{`{"code":"return_value = 42"}`}, rt.inputs)
}

func TestHandlerErrors(t *testing.T) {
	rt := &recordTool{out: script.ErrorPrefix + "name x is not defined"}
	res, err := Handler(rt)(context.Background(), callRequest(map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not defined")

	rt = &recordTool{err: errors.New("boom")}
	res, err = Handler(rt)(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"{}"}, rt.inputs)
}

func TestNewServer(t *testing.T) {
	s := NewServer("datacrew", "test", &recordTool{}, nil)
	require.NotNil(t, s)
}

func TestParseServers(t *testing.T) {
	servers, err := ParseServers([]byte(`{"mcpServers": {"sqlite": {"command": "uvx", "args": ["mcp-server-sqlite"], "tools": ["read_query"]}}}`))
	require.NoError(t, err)
	require.Contains(t, servers, "sqlite")
	assert.Equal(t, []string{"mcp-server-sqlite"}, servers["sqlite"].Args)

	_, err = ParseServers([]byte(`{"mcpServers": {"web": {"url": "http://localhost"}}}`))
	assert.ErrorIs(t, err, ErrNoCommand)
}

type fakeCaller struct {
	req mcp.CallToolRequest
	res *mcp.CallToolResult
	err error
}

func (f *fakeCaller) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.req = req
	return f.res, f.err
}

func TestRemoteTool(t *testing.T) {
	fc := &fakeCaller{res: mcp.NewToolResultText("3 rows")}
	ts := remoteTools(fc, []mcp.Tool{
		mcp.NewTool("read_query", mcp.WithDescription("run sql"), mcp.WithString("query", mcp.Required())),
		mcp.NewTool("write_query"),
	}, []string{"read_query"})
	require.Len(t, ts, 1)
	r := ts[0]
	assert.Equal(t, "read_query", r.Name())
	assert.Contains(t, r.Description(), `"query"`)
	assert.Equal(t, []string{"query"}, r.Schema().Required)

	out, err := r.Call(context.Background(), "```json\n{\"query\": \"select 1\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "3 rows", out)
	assert.Equal(t, "read_query", fc.req.Params.Name)
	assert.Equal(t, map[string]any{"query": "select 1"}, fc.req.GetArguments())

	fc.err = errors.New("pipe closed")
	out, err = r.Call(context.Background(), `{"query": "select 1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "pipe closed")

	out, err = r.Call(context.Background(), "not json")
	require.NoError(t, err)
	assert.Contains(t, out, "invalid tool input")
}
