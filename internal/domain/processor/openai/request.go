package openai

import (
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
)

const fileSearchMaxResults = 20

// Request is the Responses API request body.
type Request struct {
	Model     string         `json:"model"`
	Input     []InputMessage `json:"input"`
	Tools     []Tool         `json:"tools,omitempty"`
	Reasoning *Reasoning     `json:"reasoning,omitempty"`
	Stream    bool           `json:"stream"`
}

// InputMessage is one conversation turn in the request input.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reasoning configures the model's reasoning effort.
type Reasoning struct {
	Effort string `json:"effort"`
}

// Tool is one entry of the request's tool list. The Responses API
// multiplexes MCP, file search and web search tools over one shape.
type Tool struct {
	Type string `json:"type"`

	// MCP fields.
	ServerLabel     string            `json:"server_label,omitempty"`
	ServerURL       string            `json:"server_url,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`

	// File search fields.
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
	MaxNumResults  int      `json:"max_num_results,omitempty"`
}

// buildRequest assembles the streaming request: system message first,
// then the conversation, with MCP servers that cleared the auth gate,
// file search over the thread store and optional web search.
func buildRequest(req processor.Request, ready []mcpauth.ResolvedServer, webSearch bool) *Request {
	input := make([]InputMessage, 0, len(req.Messages)+1)
	if system := processor.SystemPrompt(req.System, ready); system != "" {
		input = append(input, InputMessage{Role: "system", Content: system})
	}
	for _, m := range req.Messages {
		input = append(input, InputMessage{Role: string(m.Role), Content: m.Text})
	}

	var tools []Tool
	for _, s := range ready {
		headers := make(map[string]string, len(s.Extra)+1)
		for k, v := range s.Extra {
			headers[k] = v
		}
		if s.Token != "" {
			headers["Authorization"] = "Bearer " + s.Token
		}
		tools = append(tools, Tool{
			Type:            "mcp",
			ServerLabel:     s.Server.Label(),
			ServerURL:       s.Server.URL,
			RequireApproval: "never",
			Headers:         headers,
		})
	}
	if req.VectorStoreID != "" {
		tools = append(tools, Tool{
			Type:           "file_search",
			VectorStoreIDs: []string{req.VectorStoreID},
			MaxNumResults:  fileSearchMaxResults,
		})
	}
	if webSearch && req.WebSearch {
		tools = append(tools, Tool{Type: "web_search"})
	}

	return &Request{
		Model:     req.Model,
		Input:     input,
		Tools:     tools,
		Reasoning: &Reasoning{Effort: "medium"},
		Stream:    true,
	}
}
