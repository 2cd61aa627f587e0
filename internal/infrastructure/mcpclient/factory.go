// Package mcpclient connects tool sessions to MCP servers over the
// streamable HTTP transport.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor/gemini"
)

// Factory implements the gemini.SessionFactory interface using the
// mcp-go streamable HTTP client.
type Factory struct {
	connectTimeout time.Duration
	log            zerolog.Logger
}

// NewFactory builds a session factory. connectTimeout bounds the
// initialize handshake.
func NewFactory(connectTimeout time.Duration, log zerolog.Logger) *Factory {
	return &Factory{
		connectTimeout: connectTimeout,
		log:            log.With().Str("component", "mcp-client").Logger(),
	}
}

var _ gemini.SessionFactory = (*Factory)(nil)

// Connect opens and initializes a session against one resolved server.
// The resolved token becomes a bearer Authorization header next to the
// configured extra headers.
func (f *Factory) Connect(ctx context.Context, server mcpauth.ResolvedServer) (gemini.ToolSession, error) {
	headers := make(map[string]string, len(server.Extra)+1)
	for k, v := range server.Extra {
		headers[k] = v
	}
	if server.Token != "" {
		headers["Authorization"] = "Bearer " + server.Token
	}

	mcpClient, err := client.NewStreamableHttpClient(server.Server.URL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, f.connectTimeout)
	defer cancel()

	if err := mcpClient.Start(connectCtx); err != nil {
		return nil, fmt.Errorf("start mcp transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "assistant-api",
		Version: "1.0.0",
	}
	if _, err := mcpClient.Initialize(connectCtx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	f.log.Debug().Str("server", server.Server.Name).Msg("mcp session established")

	return &session{client: mcpClient}, nil
}

// session wraps one live mcp-go client.
type session struct {
	client *client.Client
}

var _ gemini.ToolSession = (*session)(nil)

// ListTools lists the server's tools with their raw input schemas.
func (s *session) ListTools(ctx context.Context) ([]gemini.ToolDef, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	defs := make([]gemini.ToolDef, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schema := map[string]any{}
		if raw, err := json.Marshal(tool.InputSchema); err == nil {
			_ = json.Unmarshal(raw, &schema)
		}
		defs = append(defs, gemini.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// Call invokes one tool and joins its text content. A result flagged
// IsError comes back as a Go error carrying the joined text.
func (s *session) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	text := joinTextContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

func (s *session) Close() error {
	return s.client.Close()
}

func joinTextContent(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if text, ok := item.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
