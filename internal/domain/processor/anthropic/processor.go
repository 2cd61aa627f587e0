// Package anthropic normalizes the Anthropic Messages API event stream
// into chunks.
package anthropic

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
)

// Processor streams Anthropic Messages API calls.
type Processor struct {
	api     API
	gate    *mcpauth.Gate
	urls    mcpauth.AuthURLBuilder
	factory chunk.Factory
	models  []string
	log     zerolog.Logger
}

// New builds an Anthropic processor serving the given models.
func New(api API, gate *mcpauth.Gate, urls mcpauth.AuthURLBuilder, models []string, log zerolog.Logger) *Processor {
	return &Processor{
		api:     api,
		gate:    gate,
		urls:    urls,
		factory: chunk.NewFactory("anthropic"),
		models:  models,
		log:     log.With().Str("processor", "anthropic").Logger(),
	}
}

var _ processor.Processor = (*Processor)(nil)

func (p *Processor) Name() string { return "anthropic" }

func (p *Processor) SupportedModels() []string { return p.models }

// Stream opens a streaming message call and normalizes its events.
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

		c := &call{p: p, pending: res.Pending}

		stream, err := p.api.CreateMessageStream(ctx, buildRequest(req, res.Ready, req.VectorStoreID != ""))
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

// toolContext labels streamed argument deltas with the tool that
// opened the current block.
type toolContext struct {
	name        string
	id          string
	serverLabel string
}

// call holds the per-stream normalizer state.
type call struct {
	p       *Processor
	pending []mcpauth.Server

	reasoningSession string
	tool             *toolContext
	// needsTextSeparator requests a blank line before the next text
	// block, after thinking or tool result blocks interrupted the flow.
	needsTextSeparator bool
}

func (c *call) handle(ev *Event) *chunk.Chunk {
	f := c.p.factory

	switch ev.Type {
	case "message_start":
		return ptr(f.Lifecycle("created"))

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			return ptr(f.New(chunk.TypeLifecycle, "", map[string]string{
				chunk.MetaStatus:     "stop_reason: " + ev.Delta.StopReason,
				chunk.MetaStopReason: ev.Delta.StopReason,
			}))
		}
		return nil

	case "message_stop":
		ck := f.Completion(map[string]string{chunk.MetaStatus: "response_complete"})
		ck.Text = "Response generation completed"
		return &ck

	case "content_block_start":
		return c.handleBlockStart(ev.ContentBlock)

	case "content_block_delta":
		return c.handleBlockDelta(ev.Delta)

	case "content_block_stop":
		return c.handleBlockStop()
	}

	c.p.log.Debug().Str("event", ev.Type).Msg("ignoring unhandled event")
	return nil
}

func (c *call) handleBlockStart(block *ContentBlock) *chunk.Chunk {
	if block == nil {
		return nil
	}
	f := c.p.factory

	switch block.Type {
	case "text":
		if c.needsTextSeparator {
			c.needsTextSeparator = false
			return ptr(f.New(chunk.TypeText, "\n\n", map[string]string{chunk.MetaSeparator: "true"}))
		}
		return nil

	case "thinking":
		id := block.ID
		if id == "" {
			id = "thinking"
		}
		c.reasoningSession = id
		c.needsTextSeparator = true
		return ptr(f.New(chunk.TypeThinking, "Thinking...", map[string]string{
			chunk.MetaReasoningSession: id,
			chunk.MetaStatus:           "starting",
		}))

	case "tool_use":
		c.tool = &toolContext{name: block.Name, id: block.ID}
		return ptr(f.New(chunk.TypeToolCall, "Using tool: "+block.Name, map[string]string{
			chunk.MetaToolName: block.Name,
			chunk.MetaToolID:   block.ID,
			chunk.MetaStatus:   "starting",
		}))

	case "mcp_tool_use":
		c.tool = &toolContext{name: block.Name, id: block.ID, serverLabel: block.ServerName}
		return ptr(f.New(chunk.TypeToolCall, "Using tool: "+block.ServerName+"."+block.Name, map[string]string{
			chunk.MetaToolName:    block.Name,
			chunk.MetaToolID:      block.ID,
			chunk.MetaServerLabel: block.ServerName,
			chunk.MetaStatus:      "starting",
		}))

	case "mcp_tool_result":
		c.needsTextSeparator = true
		text := resultText(block.Content)
		status := "completed"
		errFlag := "false"
		if block.IsError {
			status = "error"
			errFlag = "true"
			if text == "" {
				text = "Tool failed"
			}
		} else if text == "" {
			text = "Tool call completed"
		}
		return ptr(f.New(chunk.TypeToolResult, text, map[string]string{
			chunk.MetaToolID: block.ToolUseID,
			chunk.MetaStatus: status,
			chunk.MetaError:  errFlag,
		}))
	}
	return nil
}

func (c *call) handleBlockDelta(delta *Delta) *chunk.Chunk {
	if delta == nil {
		return nil
	}
	f := c.p.factory

	switch delta.Type {
	case "text_delta":
		meta := map[string]string{chunk.MetaDelta: delta.Text}
		if len(delta.Citations) > 0 && string(delta.Citations) != "null" {
			meta["citations"] = string(delta.Citations)
		}
		return ptr(f.New(chunk.TypeText, delta.Text, meta))

	case "thinking_delta":
		return ptr(f.New(chunk.TypeThinking, delta.Thinking, map[string]string{
			chunk.MetaReasoningSession: c.reasoningSession,
			chunk.MetaStatus:           "in_progress",
			chunk.MetaDelta:            delta.Thinking,
		}))

	case "input_json_delta":
		meta := map[string]string{
			chunk.MetaStatus: "arguments_streaming",
			chunk.MetaDelta:  delta.PartialJSON,
		}
		if c.tool != nil {
			meta[chunk.MetaToolName] = c.tool.name
			meta[chunk.MetaToolID] = c.tool.id
			if c.tool.serverLabel != "" {
				meta[chunk.MetaServerLabel] = c.tool.serverLabel
			}
		}
		return ptr(f.New(chunk.TypeToolCall, delta.PartialJSON, meta))
	}
	return nil
}

func (c *call) handleBlockStop() *chunk.Chunk {
	f := c.p.factory

	if c.reasoningSession != "" {
		id := c.reasoningSession
		c.reasoningSession = ""
		return ptr(f.New(chunk.TypeThinkingResult, "finished.", map[string]string{
			chunk.MetaReasoningSession: id,
			chunk.MetaStatus:           "completed",
		}))
	}

	if c.tool != nil {
		tool := c.tool
		c.tool = nil
		meta := map[string]string{
			chunk.MetaToolName: tool.name,
			chunk.MetaToolID:   tool.id,
			chunk.MetaStatus:   "arguments_complete",
		}
		if tool.serverLabel != "" {
			meta[chunk.MetaServerLabel] = tool.serverLabel
		}
		return ptr(f.New(chunk.TypeToolCall, "Tool arguments complete", meta))
	}
	return nil
}

func (c *call) fail(ctx context.Context, out chan<- chunk.Chunk, err error) {
	if mcpauth.IsAuthError(err.Error()) || len(c.pending) > 0 {
		c.p.log.Debug().Err(err).Msg("suppressing auth-related stream error")
		return
	}
	c.p.log.Error().Err(err).Msg("message stream failed")
	send(ctx, out, c.p.factory.Error(err.Error(), "APIError"))
}

func (c *call) flushPending(ctx context.Context, out chan<- chunk.Chunk, userID string) {
	for _, ck := range mcpauth.PendingChunks(ctx, c.p.factory, c.p.urls, userID, c.pending, c.p.log) {
		if !send(ctx, out, ck) {
			return
		}
	}
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
