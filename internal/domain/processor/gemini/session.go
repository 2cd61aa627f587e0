package gemini

import (
	"context"

	"assistant-api/internal/domain/mcpauth"
)

// ToolDef is one tool offered by an MCP server.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolSession is a live connection to one MCP server, scoped to a
// single model call.
type ToolSession interface {
	ListTools(ctx context.Context) ([]ToolDef, error)
	Call(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// SessionFactory connects tool sessions for servers that cleared the
// auth gate.
type SessionFactory interface {
	Connect(ctx context.Context, server mcpauth.ResolvedServer) (ToolSession, error)
}

// boundTool ties a tool name to the session and server it came from.
type boundTool struct {
	session ToolSession
	label   string
	def     ToolDef
}
