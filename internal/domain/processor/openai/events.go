package openai

import (
	"context"
	"encoding/json"
)

// Event is one server-sent event from the Responses API stream. Only
// the fields the normalizer consumes are modeled; the rest of the
// payload is ignored.
type Event struct {
	Type       string          `json:"type"`
	ItemID     string          `json:"item_id,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Arguments  string          `json:"arguments,omitempty"`
	Item       *Item           `json:"item,omitempty"`
	Annotation json.RawMessage `json:"annotation,omitempty"`
	Error      *EventError     `json:"error,omitempty"`

	// Image generation events carry one of these.
	URL          string `json:"url,omitempty"`
	PartialImage string `json:"partial_image_b64,omitempty"`
}

// Item is an output item inside an event.
type Item struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Name        string          `json:"name,omitempty"`
	ServerLabel string          `json:"server_label,omitempty"`
	Output      string          `json:"output,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	Summary     json.RawMessage `json:"summary,omitempty"`
}

// EventError is the error payload of a failed event.
type EventError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// annotationText renders an annotation payload for display: URL
// citations show the URL, file citations the filename.
func annotationText(raw json.RawMessage) string {
	var ann struct {
		Type     string `json:"type"`
		URL      string `json:"url,omitempty"`
		Filename string `json:"filename,omitempty"`
	}
	if err := json.Unmarshal(raw, &ann); err != nil {
		return string(raw)
	}
	if ann.Type == "url_citation" && ann.URL != "" {
		return ann.URL
	}
	if ann.Filename != "" {
		return ann.Filename
	}
	return string(raw)
}

// extractErrorText pulls a readable message out of an item error, which
// upstream is either a bare string or an object wrapping content parts.
func extractErrorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "Unknown error"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}

	var wrapped struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if len(wrapped.Content) > 0 && wrapped.Content[0].Text != "" {
			return wrapped.Content[0].Text
		}
		if wrapped.Message != "" {
			return wrapped.Message
		}
	}
	return "Unknown error"
}

// summaryText renders a reasoning item's summary, which upstream is a
// string or a list of summary parts.
func summaryText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "[]" {
		return "finished"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "finished"
		}
		return s
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil && len(parts) > 0 {
		out := ""
		for i, p := range parts {
			if i > 0 {
				out += "\n"
			}
			out += p.Text
		}
		if out != "" {
			return out
		}
	}
	return "finished"
}

// EventStream yields Responses API events until io.EOF.
type EventStream interface {
	Recv() (*Event, error)
	Close() error
}

// API opens streaming response calls against the OpenAI Responses API.
type API interface {
	CreateResponseStream(ctx context.Context, req *Request) (EventStream, error)
}
