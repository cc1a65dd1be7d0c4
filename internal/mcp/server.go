// Package mcp exposes the tool set over the Model Context Protocol using the
// official MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
//
// The server speaks stdio: the host spawns the process and exchanges JSON-RPC
// over stdin/stdout, so logs must go to stderr only. Every tool handler runs
// with panic recovery and always returns a structured envelope; a Go error
// never crosses the protocol boundary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/conclave/internal/observe"
	"github.com/MrWong99/conclave/internal/tools"
)

// serverName identifies this server in the MCP handshake.
const serverName = "conclave"

// Server wraps the SDK server with envelope serialization and tool metrics.
type Server struct {
	server  *mcpsdk.Server
	metrics *observe.Metrics
}

// NewServer creates the MCP server shell. metrics may be nil.
func NewServer(version string, metrics *observe.Metrics) *Server {
	return &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
		metrics: metrics,
	}
}

// AddTool registers t with the server. readOnly marks tools that never
// mutate the caller's environment (all of them here, but workflow tools
// advertise it so hosts can run them without confirmation prompts).
func (s *Server) AddTool(t tools.Tool, readOnly bool) {
	tool := &mcpsdk.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
	if readOnly {
		tool.Annotations = &mcpsdk.ToolAnnotations{ReadOnlyHint: true}
	}
	s.server.AddTool(tool, s.handler(t))
}

// Run serves MCP over stdio until ctx is cancelled or the host disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server listening on stdio", "server", serverName)
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// handler adapts a tool to the SDK's raw-arguments handler shape.
func (s *Server) handler(t tools.Tool) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		start := time.Now()
		env := s.execute(ctx, t, req.Params.Arguments)

		if s.metrics != nil {
			s.metrics.RecordToolCall(ctx, t.Name(), env.Status, time.Since(start).Seconds())
		}
		slog.Info("tool call completed",
			"tool", t.Name(), "status", env.Status, "duration", time.Since(start))

		data, err := json.Marshal(env)
		if err != nil {
			data = []byte(fmt.Sprintf(
				`{"status":"error","content":"failed to serialize result: %s","content_type":"text"}`, err))
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
			IsError: env.Status == tools.StatusError,
		}, nil
	}
}

// execute decodes the raw arguments and runs the tool under panic recovery.
func (s *Server) execute(ctx context.Context, t tools.Tool, raw json.RawMessage) (env *tools.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked",
				"tool", t.Name(), "panic", r, "stack", string(debug.Stack()))
			env = tools.ErrorEnvelope(fmt.Sprintf("%s failed: internal error", t.Name()))
		}
	}()

	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return tools.ErrorEnvelope(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	env, err := t.Execute(ctx, args)
	if err != nil {
		return tools.ErrorEnvelope(fmt.Sprintf("%s failed: %v", t.Name(), err))
	}
	if env == nil {
		return tools.ErrorEnvelope(fmt.Sprintf("%s returned no result", t.Name()))
	}
	return env
}
