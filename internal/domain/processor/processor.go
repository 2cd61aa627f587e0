// Package processor defines the contract implemented by the provider
// specific stream normalizers.
package processor

import (
	"context"
	"errors"
	"fmt"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
)

// ErrNotInitialized is returned when a processor is missing its
// provider credentials or client.
var ErrNotInitialized = errors.New("processor not initialized")

// UnsupportedModelError is returned when a processor is asked to stream
// a model it does not serve.
type UnsupportedModelError struct {
	Processor string
	Model     string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("%s processor does not support model %q", e.Processor, e.Model)
}

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of the conversation sent to the provider.
type Message struct {
	Role Role
	Text string
}

// Request carries everything a processor needs for one model call.
type Request struct {
	UserID   string
	ThreadID string
	Model    string
	System   string
	Messages []Message

	// Servers lists the MCP servers enabled for this call, before the
	// auth gate has run.
	Servers []mcpauth.Server

	// VectorStoreID enables file search over the thread's store when set.
	VectorStoreID string
	// WebSearch enables the provider's web search tool when supported.
	WebSearch bool
}

// Processor normalizes one provider's streaming protocol into chunks.
//
// Stream validates the request synchronously: configuration problems
// (ErrNotInitialized, UnsupportedModelError) are returned before any
// chunk is produced. Once a channel is returned, failures are reported
// in-band as error chunks and the channel is always closed.
type Processor interface {
	Name() string
	SupportedModels() []string
	Stream(ctx context.Context, req Request) (<-chan chunk.Chunk, error)
}

// Supports reports whether model is in the processor's model list.
func Supports(p Processor, model string) bool {
	for _, m := range p.SupportedModels() {
		if m == model {
			return true
		}
	}
	return false
}
