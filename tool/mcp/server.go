// Package mcp bridges crew tools and the Model Context Protocol: NewServer
// exposes tools to external agents, Mount brings external tools in.
package mcp

import (
	"context"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/antgroup/datacrew/script"
	"github.com/antgroup/datacrew/tool"
	"github.com/antgroup/datacrew/tool/executor"
	"github.com/antgroup/datacrew/utils/json"
)

// NewServer registers every tool under a snake_case name derived from its
// display name.
func NewServer(name, version string, tools ...tool.Tool) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery())
	for _, t := range tools {
		if t == nil {
			continue
		}
		s.AddTool(Definition(t), Handler(t))
	}
	return s
}

// ServeStdio blocks serving s on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ToolName turns "Starlark Data Code Executor" into "starlark_data_code_executor".
func ToolName(display string) string {
	fields := strings.FieldsFunc(strings.ToLower(display), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "_")
}

// Definition describes t as an MCP tool.
func Definition(t tool.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}
	sc := t.Schema()
	if sc == nil {
		return mcp.NewTool(ToolName(t.Name()), opts...)
	}
	required := make(map[string]bool, len(sc.Required))
	for _, r := range sc.Required {
		required[r] = true
	}
	names := make([]string, 0, len(sc.Properties))
	for n := range sc.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p := sc.Properties[n]
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if required[n] {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case tool.TypeNum, tool.TypeInt:
			opts = append(opts, mcp.WithNumber(n, popts...))
		case tool.TypeBool:
			opts = append(opts, mcp.WithBoolean(n, popts...))
		case tool.TypeArr:
			opts = append(opts, mcp.WithArray(n, popts...))
		case tool.TypeJson:
			opts = append(opts, mcp.WithObject(n, popts...))
		default:
			opts = append(opts, mcp.WithString(n, popts...))
		}
	}
	return mcp.NewTool(ToolName(t.Name()), opts...)
}

// Handler calls t with the request arguments encoded as a JSON object.
// Error observations are flagged so clients can tell them apart.
func Handler(t tool.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		out, err := t.Call(ctx, string(input))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if isErrorObservation(out) {
			return mcp.NewToolResultError(out), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func isErrorObservation(out string) bool {
	return strings.HasPrefix(out, script.ErrorPrefix) || strings.HasPrefix(out, executor.PlottingPrefix)
}
