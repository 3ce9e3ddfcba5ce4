package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/tool"
	"github.com/antgroup/datacrew/utils/json"
)

const _maxObservation = 2000

// ServerParam launches one external MCP server over stdio.
type ServerParam struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	// Tools limits which of the server's tools are mounted; empty mounts all.
	Tools []string `json:"tools"`
}

// Servers is the usual mcpServers config document.
type Servers struct {
	MCPServers map[string]*ServerParam `json:"mcpServers"`
}

func ParseServers(data []byte) (map[string]*ServerParam, error) {
	var doc Servers
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse mcp servers")
	}
	for name, p := range doc.MCPServers {
		if p == nil || p.Command == "" {
			return nil, errors.Wrap(ErrNoCommand, name)
		}
	}
	return doc.MCPServers, nil
}

type caller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Remote is a tool served by an external MCP server.
type Remote struct {
	c          caller
	name       string
	desc       string
	properties *tool.PropertiesSchema
}

var _ tool.Tool = (*Remote)(nil)

// Mount starts every configured server and returns its tools. The returned
// close func stops the servers.
func Mount(ctx context.Context, servers map[string]*ServerParam) ([]tool.Tool, func() error, error) {
	names := make([]string, 0, len(servers))
	for n := range servers {
		names = append(names, n)
	}
	sort.Strings(names)

	var clients []*client.Client
	closeAll := func() error {
		var first error
		for _, c := range clients {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	tools := make([]tool.Tool, 0)
	for _, n := range names {
		c, ts, err := start(ctx, servers[n])
		if err != nil {
			_ = closeAll()
			return nil, nil, errors.Wrapf(err, "mcp server %s", n)
		}
		clients = append(clients, c)
		tools = append(tools, remoteTools(c, ts, servers[n].Tools)...)
	}
	return tools, closeAll, nil
}

func start(ctx context.Context, p *ServerParam) (*client.Client, []mcp.Tool, error) {
	env := make([]string, 0, len(p.Env))
	for k, v := range p.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	c, err := client.NewStdioMCPClient(p.Command, env, p.Args...)
	if err != nil {
		return nil, nil, err
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "datacrew", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, nil, errors.Wrap(err, "initialize")
	}
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return nil, nil, errors.Wrap(err, "list tools")
	}
	return c, res.Tools, nil
}

func remoteTools(c caller, ts []mcp.Tool, allow []string) []tool.Tool {
	out := make([]tool.Tool, 0, len(ts))
	for _, t := range ts {
		if len(allow) > 0 && !contains(allow, t.Name) {
			continue
		}
		r := &Remote{c: c, name: t.Name, desc: t.Description, properties: &tool.PropertiesSchema{}}
		raw, _ := json.Marshal(t.InputSchema)
		_ = json.Unmarshal(raw, r.properties)
		out = append(out, r)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if strings.EqualFold(e, s) {
			return true
		}
	}
	return false
}

func (r *Remote) Name() string { return r.name }

func (r *Remote) Description() string {
	if r.properties == nil || len(r.properties.Properties) == 0 {
		return r.desc
	}
	raw, _ := json.Marshal(r.properties)
	return r.desc + "\nThe input must be json schema: " + string(raw)
}

func (r *Remote) Schema() *tool.PropertiesSchema { return r.properties }

func (r *Remote) Strict() bool { return true }

// Call forwards a JSON object input. Transport failures become observations.
func (r *Remote) Call(ctx context.Context, input string) (string, error) {
	args := make(map[string]any)
	if trimmed := json.TrimJsonString(input); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return "invalid tool input, want a json object: " + err.Error(), nil
		}
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = r.name
	req.Params.Arguments = args
	res, err := r.c.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "failed to call tool, err: " + err.Error(), nil
	}
	out := resultText(res)
	if len(out) > _maxObservation {
		out = out[:_maxObservation]
	}
	return out, nil
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(tc.Text)
		}
	}
	if sb.Len() == 0 {
		raw, _ := json.Marshal(res.Content)
		return string(raw)
	}
	if res.IsError {
		return "tool error: " + sb.String()
	}
	return sb.String()
}
