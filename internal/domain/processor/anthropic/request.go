package anthropic

import (
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
)

const (
	// maxTokens must stay above the thinking budget.
	maxTokens            = 32000
	thinkingBudgetTokens = 10000

	mcpBeta   = "mcp-client-2025-11-20"
	filesBeta = "files-api-2025-04-14"
)

// Request is the Messages API request body.
type Request struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system,omitempty"`
	Messages   []InputMessage `json:"messages"`
	MCPServers []ServerConfig `json:"mcp_servers,omitempty"`
	Tools      []Tool         `json:"tools,omitempty"`
	Thinking   Thinking       `json:"thinking"`
	Stream     bool           `json:"stream"`

	// Betas go into the anthropic-beta header, not the body.
	Betas []string `json:"-"`
}

// InputMessage is one conversation turn.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ServerConfig points the MCP connector at one server. The connector
// only carries a bearer token, so extra headers are folded into the
// URL as query parameters.
type ServerConfig struct {
	Type               string `json:"type"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	AuthorizationToken string `json:"authorization_token,omitempty"`
}

// Tool enables one MCP server's toolset.
type Tool struct {
	Type          string `json:"type"`
	MCPServerName string `json:"mcp_server_name"`
}

// Thinking enables extended thinking with a token budget.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

// buildRequest assembles the streaming request from the servers that
// cleared the auth gate.
func buildRequest(req processor.Request, ready []mcpauth.ResolvedServer, withFiles bool) *Request {
	messages := make([]InputMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, InputMessage{Role: string(m.Role), Content: m.Text})
	}

	var servers []ServerConfig
	var tools []Tool
	for _, s := range ready {
		url := mcpauth.AppendQuery(s.Server.URL, mcpauth.QueryParams(s.Extra))
		servers = append(servers, ServerConfig{
			Type:               "url",
			Name:               s.Server.Name,
			URL:                url,
			AuthorizationToken: s.Token,
		})
		tools = append(tools, Tool{Type: "mcp_toolset", MCPServerName: s.Server.Name})
	}

	var betas []string
	if len(servers) > 0 {
		betas = append(betas, mcpBeta)
	}
	if withFiles {
		betas = append(betas, filesBeta)
	}

	return &Request{
		Model:      req.Model,
		MaxTokens:  maxTokens,
		System:     processor.SystemPrompt(req.System, ready),
		Messages:   messages,
		MCPServers: servers,
		Tools:      tools,
		Thinking:   Thinking{Type: "enabled", BudgetTokens: thinkingBudgetTokens},
		Stream:     true,
		Betas:      betas,
	}
}
