package anthropic

import (
	"context"
	"encoding/json"
)

// Event is one server-sent event from the Messages API stream.
type Event struct {
	Type         string        `json:"type"`
	Index        int           `json:"index,omitempty"`
	Delta        *Delta        `json:"delta,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
}

// Delta carries the incremental payload of a content block or message.
type Delta struct {
	Type        string          `json:"type,omitempty"`
	Text        string          `json:"text,omitempty"`
	Thinking    string          `json:"thinking,omitempty"`
	PartialJSON string          `json:"partial_json,omitempty"`
	StopReason  string          `json:"stop_reason,omitempty"`
	Citations   json.RawMessage `json:"citations,omitempty"`
}

// ContentBlock opens a text, thinking, tool use or tool result block.
type ContentBlock struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	ServerName string          `json:"server_name,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
}

// resultText flattens a tool result's content parts into one string.
// Content is either a bare string or a list of text parts.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		out := ""
		for _, p := range parts {
			out += p.Text
		}
		return out
	}
	return string(raw)
}

// EventStream yields Messages API events until io.EOF.
type EventStream interface {
	Recv() (*Event, error)
	Close() error
}

// API opens streaming message calls against the Anthropic Messages API.
type API interface {
	CreateMessageStream(ctx context.Context, req *Request) (EventStream, error)
}
