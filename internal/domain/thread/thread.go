// Package thread holds the conversation model and the aggregator that
// folds a processor's chunk stream into displayable thread state.
package thread

import "time"

// MessageType classifies a thread message.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageError     MessageType = "error"
)

// Message is one entry in a thread's transcript.
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// Thread is a persisted conversation.
type Thread struct {
	ID            uint      `json:"id"`
	UUID          string    `json:"uuid"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	VectorStoreID string    `json:"vector_store_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ItemType classifies an activity item shown alongside the answer.
type ItemType string

const (
	ItemReasoning ItemType = "reasoning"
	ItemToolCall  ItemType = "tool_call"
)

// ItemStatus is the lifecycle state of an activity item.
type ItemStatus string

const (
	StatusInProgress ItemStatus = "in_progress"
	StatusCompleted  ItemStatus = "completed"
	StatusError      ItemStatus = "error"
)

// Item is one reasoning or tool activity entry.
type Item struct {
	ID         string     `json:"id"`
	Type       ItemType   `json:"type"`
	Status     ItemStatus `json:"status"`
	Text       string     `json:"text,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Parameters string     `json:"parameters,omitempty"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// AuthPrompt carries the data needed to send the user through an MCP
// server's authorization flow.
type AuthPrompt struct {
	ServerID   string `json:"server_id"`
	ServerName string `json:"server_name"`
	AuthURL    string `json:"auth_url"`
	State      string `json:"state,omitempty"`
}
