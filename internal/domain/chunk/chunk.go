// Package chunk defines the normalized streaming unit shared by all
// provider processors and every downstream consumer.
package chunk

// Type identifies what a chunk carries.
type Type string

const (
	TypeText           Type = "text"
	TypeAnnotation     Type = "annotation"
	TypeImage          Type = "image"
	TypeImagePartial   Type = "image_partial"
	TypeThinking       Type = "thinking"
	TypeThinkingResult Type = "thinking_result"
	TypeAction         Type = "action"
	TypeToolResult     Type = "tool_result"
	TypeToolCall       Type = "tool_call"
	TypeCompletion     Type = "completion"
	TypeAuthRequired   Type = "auth_required"
	TypeError          Type = "error"
	TypeLifecycle      Type = "lifecycle"
)

// Metadata keys used across processors.
const (
	MetaProcessor        = "processor"
	MetaStatus           = "status"
	MetaReasoningSession = "reasoning_session"
	MetaToolName         = "tool_name"
	MetaToolID           = "tool_id"
	MetaServerLabel      = "server_label"
	MetaServerName       = "server_name"
	MetaServerID         = "server_id"
	MetaAuthURL          = "auth_url"
	MetaAuthState        = "state"
	MetaErrorType        = "error_type"
	MetaDelta            = "delta"
	MetaParameters       = "parameters"
	MetaDescription      = "description"
	MetaError            = "error"
	MetaAnnotation       = "annotation"
	MetaStopReason       = "stop_reason"
	MetaSeparator        = "separator"
	MetaResultLength     = "result_length"
)

// Chunk is a single normalized streaming unit. Every chunk carries the
// name of the processor that produced it in metadata under "processor".
type Chunk struct {
	Type     Type              `json:"type"`
	Text     string            `json:"text,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Factory builds chunks stamped with a fixed processor name.
type Factory struct {
	processor string
}

// NewFactory returns a factory stamping chunks with the given processor name.
func NewFactory(processor string) Factory {
	return Factory{processor: processor}
}

// New builds a chunk of the given type, merging extra metadata on top of
// the processor stamp.
func (f Factory) New(t Type, text string, meta map[string]string) Chunk {
	m := make(map[string]string, len(meta)+1)
	m[MetaProcessor] = f.processor
	for k, v := range meta {
		m[k] = v
	}
	return Chunk{Type: t, Text: text, Metadata: m}
}

// Text builds a plain text chunk.
func (f Factory) Text(text string) Chunk {
	return f.New(TypeText, text, nil)
}

// Completion builds a terminal completion chunk.
func (f Factory) Completion(meta map[string]string) Chunk {
	return f.New(TypeCompletion, "", meta)
}

// Lifecycle builds a lifecycle marker chunk.
func (f Factory) Lifecycle(status string) Chunk {
	return f.New(TypeLifecycle, "", map[string]string{MetaStatus: status})
}

// Error builds an error chunk carrying the failure message and type name.
func (f Factory) Error(message, errorType string) Chunk {
	return f.New(TypeError, message, map[string]string{MetaErrorType: errorType})
}

// AuthRequired builds an authorization request chunk for an MCP server.
// URL and state may be empty when building the authorization URL failed.
func (f Factory) AuthRequired(serverName, serverID, authURL, state string) Chunk {
	return f.New(TypeAuthRequired, "", map[string]string{
		MetaServerName: serverName,
		MetaServerID:   serverID,
		MetaAuthURL:    authURL,
		MetaAuthState:  state,
	})
}
