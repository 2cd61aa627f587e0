// Package openai normalizes the OpenAI Responses API event stream into
// chunks.
package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
)

// Processor streams OpenAI Responses API calls.
type Processor struct {
	api       API
	gate      *mcpauth.Gate
	urls      mcpauth.AuthURLBuilder
	factory   chunk.Factory
	models    []string
	webSearch bool
	log       zerolog.Logger
}

// Option configures the processor.
type Option func(*Processor)

// WithWebSearch enables the provider's web search tool.
func WithWebSearch() Option {
	return func(p *Processor) { p.webSearch = true }
}

// New builds an OpenAI processor serving the given models.
func New(api API, gate *mcpauth.Gate, urls mcpauth.AuthURLBuilder, models []string, log zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		api:     api,
		gate:    gate,
		urls:    urls,
		factory: chunk.NewFactory("openai"),
		models:  models,
		log:     log.With().Str("processor", "openai").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ processor.Processor = (*Processor)(nil)

func (p *Processor) Name() string { return "openai" }

func (p *Processor) SupportedModels() []string { return p.models }

// Stream opens a streaming response call and normalizes its events.
func (p *Processor) Stream(ctx context.Context, req processor.Request) (<-chan chunk.Chunk, error) {
	if p.api == nil {
		return nil, processor.ErrNotInitialized
	}
	if !processor.Supports(p, req.Model) {
		return nil, &processor.UnsupportedModelError{Processor: p.Name(), Model: req.Model}
	}

	res := p.gate.Resolve(ctx, req.UserID, req.Servers)
	out := make(chan chunk.Chunk)

	go func() {
		defer close(out)

		c := &call{
			p:         p,
			ready:     res.Ready,
			pending:   res.Pending,
			toolNames: map[string]string{},
		}

		stream, err := p.api.CreateResponseStream(ctx, buildRequest(req, res.Ready, p.webSearch))
		if err != nil {
			c.fail(ctx, out, err)
			c.flushPending(ctx, out, req.UserID)
			return
		}
		defer stream.Close()

		for {
			ev, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					c.fail(ctx, out, err)
				}
				break
			}
			if ck := c.handle(ev); ck != nil {
				if !send(ctx, out, *ck) {
					return
				}
			}
		}

		c.flushPending(ctx, out, req.UserID)
	}()

	return out, nil
}

// call holds the per-stream normalizer state.
type call struct {
	p       *Processor
	ready   []mcpauth.ResolvedServer
	pending []mcpauth.Server

	// toolNames maps output item ids to "server.tool" labels, so that
	// argument and result events can be labeled after the fact.
	toolNames        map[string]string
	reasoningSession string
}

func (c *call) handle(ev *Event) *chunk.Chunk {
	f := c.p.factory

	switch ev.Type {
	case "response.created":
		return ptr(f.Lifecycle("created"))
	case "response.in_progress":
		return ptr(f.Lifecycle("in_progress"))
	case "response.done":
		return ptr(f.Completion(map[string]string{chunk.MetaStatus: "done"}))
	case "response.completed":
		return ptr(f.Completion(map[string]string{chunk.MetaStatus: "response_complete"}))

	case "response.output_text.delta":
		return ptr(f.New(chunk.TypeText, ev.Delta, map[string]string{chunk.MetaDelta: ev.Delta}))

	case "response.output_text.annotation.added":
		text := annotationText(ev.Annotation)
		return ptr(f.New(chunk.TypeAnnotation, text, map[string]string{chunk.MetaAnnotation: text}))

	case "response.output_item.added":
		return c.handleItemAdded(ev.Item)
	case "response.output_item.done":
		return c.handleItemDone(ev.Item)

	case "response.mcp_call_arguments.delta":
		return ptr(f.New(chunk.TypeToolCall, "", map[string]string{
			chunk.MetaToolName: c.toolName(ev.ItemID),
			chunk.MetaToolID:   ev.ItemID,
			chunk.MetaStatus:   "arguments_streaming",
			chunk.MetaDelta:    ev.Delta,
		}))
	case "response.mcp_call_arguments.done":
		return ptr(f.New(chunk.TypeToolCall, "Arguments: "+ev.Arguments, map[string]string{
			chunk.MetaToolName:   c.toolName(ev.ItemID),
			chunk.MetaToolID:     ev.ItemID,
			chunk.MetaStatus:     "arguments_complete",
			chunk.MetaParameters: ev.Arguments,
		}))

	case "response.mcp_call.failed":
		text := "Tool call failed"
		if ev.Error != nil && ev.Error.Message != "" {
			text = ev.Error.Message
		}
		return ptr(f.New(chunk.TypeToolResult, text, map[string]string{
			chunk.MetaToolID: ev.ItemID,
			chunk.MetaStatus: "failed",
			chunk.MetaError:  "true",
		}))

	case "response.mcp_call.in_progress", "response.mcp_call.completed",
		"response.mcp_list_tools.in_progress", "response.mcp_list_tools.completed":
		c.p.log.Debug().Str("event", ev.Type).Msg("tool lifecycle event")
		return nil

	case "response.mcp_list_tools.failed":
		return c.handleListToolsFailed(ev)

	case "response.content_part.added", "response.content_part.done", "response.output_text.done":
		return nil
	}

	if strings.Contains(ev.Type, "image") {
		switch {
		case ev.URL != "":
			return ptr(f.New(chunk.TypeImage, ev.URL, nil))
		case ev.PartialImage != "":
			return ptr(f.New(chunk.TypeImagePartial, ev.PartialImage, nil))
		}
	}

	c.p.log.Debug().Str("event", ev.Type).Msg("ignoring unhandled event")
	return nil
}

func (c *call) handleItemAdded(item *Item) *chunk.Chunk {
	if item == nil {
		return nil
	}
	f := c.p.factory

	switch item.Type {
	case "mcp_call":
		name := item.Name
		if item.ServerLabel != "" {
			name = item.ServerLabel + "." + item.Name
		}
		c.toolNames[item.ID] = name
		return ptr(f.New(chunk.TypeToolCall, "", map[string]string{
			chunk.MetaToolName:    name,
			chunk.MetaToolID:      item.ID,
			chunk.MetaServerLabel: item.ServerLabel,
			chunk.MetaStatus:      "starting",
		}))
	case "reasoning":
		c.reasoningSession = item.ID
		return ptr(f.New(chunk.TypeThinking, "", map[string]string{
			chunk.MetaReasoningSession: item.ID,
			chunk.MetaStatus:           "starting",
		}))
	}
	return nil
}

func (c *call) handleItemDone(item *Item) *chunk.Chunk {
	if item == nil {
		return nil
	}
	f := c.p.factory

	switch item.Type {
	case "mcp_call":
		name := c.toolName(item.ID)
		if len(item.Error) > 0 && string(item.Error) != "null" {
			errText := extractErrorText(item.Error)
			status := "error"
			if mcpauth.IsAuthError(errText) {
				status = "auth_required"
			}
			return ptr(f.New(chunk.TypeToolResult, errText, map[string]string{
				chunk.MetaToolName: name,
				chunk.MetaToolID:   item.ID,
				chunk.MetaStatus:   status,
				chunk.MetaError:    "true",
			}))
		}
		text := item.Output
		if text == "" {
			text = "Tool call completed"
		}
		return ptr(f.New(chunk.TypeToolResult, text, map[string]string{
			chunk.MetaToolName: name,
			chunk.MetaToolID:   item.ID,
			chunk.MetaStatus:   "completed",
		}))
	case "reasoning":
		c.reasoningSession = ""
		return ptr(f.New(chunk.TypeThinkingResult, summaryText(item.Summary), map[string]string{
			chunk.MetaReasoningSession: item.ID,
			chunk.MetaStatus:           "completed",
		}))
	}
	return nil
}

// handleListToolsFailed attributes a tool-listing failure to a server.
// Matching is by name in the error text first, then by treating an auth
// failure as belonging to the only plausible candidate.
func (c *call) handleListToolsFailed(ev *Event) *chunk.Chunk {
	f := c.p.factory
	errText := "Tool listing failed"
	if ev.Error != nil && ev.Error.Message != "" {
		errText = ev.Error.Message
	}

	if server := c.matchFailedServer(errText); server != nil {
		return ptr(f.New(chunk.TypeToolResult, errText, map[string]string{
			chunk.MetaServerName: server.Name,
			chunk.MetaStatus:     "auth_required",
			chunk.MetaError:      "true",
		}))
	}

	return ptr(f.New(chunk.TypeToolResult, errText, map[string]string{
		chunk.MetaStatus: "listing_failed",
		chunk.MetaError:  "true",
	}))
}

func (c *call) matchFailedServer(errText string) *mcpauth.Server {
	low := strings.ToLower(errText)

	for i := range c.pending {
		if strings.Contains(low, strings.ToLower(c.pending[i].Name)) {
			return &c.pending[i]
		}
	}

	authErr := mcpauth.IsAuthError(errText)
	if authErr {
		for i := range c.ready {
			if strings.Contains(low, strings.ToLower(c.ready[i].Server.Name)) {
				c.pending = append(c.pending, c.ready[i].Server)
				return &c.pending[len(c.pending)-1]
			}
		}
	}

	if len(c.pending) > 0 && (authErr || len(c.pending) == 1) {
		return &c.pending[0]
	}
	return nil
}

// fail reports a stream failure in-band. Errors that merely reflect a
// missing authorization are swallowed when authorization chunks will
// follow.
func (c *call) fail(ctx context.Context, out chan<- chunk.Chunk, err error) {
	if mcpauth.IsAuthError(err.Error()) || len(c.pending) > 0 {
		c.p.log.Debug().Err(err).Msg("suppressing auth-related stream error")
		return
	}
	c.p.log.Error().Err(err).Msg("response stream failed")
	send(ctx, out, c.p.factory.Error(err.Error(), "APIError"))
}

func (c *call) flushPending(ctx context.Context, out chan<- chunk.Chunk, userID string) {
	for _, ck := range mcpauth.PendingChunks(ctx, c.p.factory, c.p.urls, userID, c.pending, c.p.log) {
		if !send(ctx, out, ck) {
			return
		}
	}
}

func (c *call) toolName(itemID string) string {
	if name, ok := c.toolNames[itemID]; ok {
		return name
	}
	return "mcp_tool"
}

func send(ctx context.Context, out chan<- chunk.Chunk, ck chunk.Chunk) bool {
	select {
	case out <- ck:
		return true
	case <-ctx.Done():
		return false
	}
}

func ptr(c chunk.Chunk) *chunk.Chunk { return &c }
