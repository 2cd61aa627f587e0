// Package gemini drives the Gemini API, running MCP tool calls in an
// explicit request loop since the API has no server-side MCP connector.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
	"assistant-api/internal/domain/toolschema"
)

const (
	// maxToolRounds bounds the request loop so a model that keeps
	// calling tools cannot spin forever.
	maxToolRounds = 10
	// resultPreviewLen caps the tool result text carried on chunks.
	resultPreviewLen = 500
)

// Processor streams Gemini generation calls.
type Processor struct {
	api      API
	sessions SessionFactory
	gate     *mcpauth.Gate
	urls     mcpauth.AuthURLBuilder
	factory  chunk.Factory
	models   []string
	log      zerolog.Logger
}

// New builds a Gemini processor serving the given models.
func New(api API, sessions SessionFactory, gate *mcpauth.Gate, urls mcpauth.AuthURLBuilder, models []string, log zerolog.Logger) *Processor {
	return &Processor{
		api:      api,
		sessions: sessions,
		gate:     gate,
		urls:     urls,
		factory:  chunk.NewFactory("gemini"),
		models:   models,
		log:      log.With().Str("processor", "gemini").Logger(),
	}
}

var _ processor.Processor = (*Processor)(nil)

func (p *Processor) Name() string { return "gemini" }

func (p *Processor) SupportedModels() []string { return p.models }

// Stream generates a response. With MCP servers available it runs the
// tool loop; without any it streams the answer directly.
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

		c := &call{p: p, ready: res.Ready, pending: res.Pending, tools: map[string]boundTool{}}
		defer c.closeSessions()

		c.connectSessions(ctx, res.Ready)

		var err error
		if len(c.sessions) > 0 {
			err = c.runToolLoop(ctx, out, req)
		} else {
			err = c.streamDirect(ctx, out, req)
		}
		if err != nil {
			c.fail(ctx, out, err)
		}

		c.flushPending(ctx, out, req.UserID)
	}()

	return out, nil
}

// call holds the per-stream state: live sessions and the tool routing
// table built from them.
type call struct {
	p        *Processor
	ready    []mcpauth.ResolvedServer
	pending  []mcpauth.Server
	sessions []ToolSession
	tools    map[string]boundTool
}

// connectSessions opens one session per ready server. Connection and
// listing failures skip the server rather than failing the call.
func (c *call) connectSessions(ctx context.Context, ready []mcpauth.ResolvedServer) {
	for _, server := range ready {
		session, err := c.p.sessions.Connect(ctx, server)
		if err != nil {
			c.p.log.Warn().Err(err).Str("server", server.Server.Name).Msg("connecting mcp session failed")
			continue
		}
		defs, err := session.ListTools(ctx)
		if err != nil {
			c.p.log.Warn().Err(err).Str("server", server.Server.Name).Msg("listing tools failed")
			session.Close()
			continue
		}

		c.sessions = append(c.sessions, session)
		for _, def := range defs {
			c.tools[def.Name] = boundTool{session: session, label: server.Server.Label(), def: def}
		}
	}
}

func (c *call) closeSessions() {
	for _, s := range c.sessions {
		if err := s.Close(); err != nil {
			c.p.log.Warn().Err(err).Msg("closing mcp session failed")
		}
	}
}

// declarations builds the sanitized function declarations offered to
// the model.
func (c *call) declarations() []Tool {
	if len(c.tools) == 0 {
		return nil
	}
	var decls []FunctionDeclaration
	for _, bound := range c.tools {
		decls = append(decls, FunctionDeclaration{
			Name:        bound.def.Name,
			Description: bound.def.Description,
			Parameters:  toolschema.Sanitize(bound.def.InputSchema),
		})
	}
	return []Tool{{FunctionDeclarations: decls}}
}

// runToolLoop alternates generation and tool execution until the model
// answers in plain text or the round budget runs out.
func (c *call) runToolLoop(ctx context.Context, out chan<- chunk.Chunk, req processor.Request) error {
	contents := buildContents(req)
	greq := &Request{
		Model:             req.Model,
		Contents:          contents,
		Tools:             c.declarations(),
		SystemInstruction: systemInstruction(req, c.ready),
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := c.p.api.GenerateContent(ctx, greq)
		if err != nil {
			return err
		}
		if len(resp.Candidates) == 0 {
			return nil
		}

		calls := resp.functionCalls()
		if len(calls) == 0 {
			if text := resp.text(); text != "" {
				if !send(ctx, out, c.p.factory.Text(text)) {
					return nil
				}
			}
			return nil
		}

		greq.Contents = append(greq.Contents, resp.Candidates[0].Content)

		var responses []Part
		for _, fc := range calls {
			result, ck := c.execute(ctx, fc)
			if !send(ctx, out, ck...) {
				return nil
			}
			responses = append(responses, Part{FunctionResponse: &FunctionResponse{
				Name:     fc.Name,
				Response: map[string]any{"result": result},
			}})
		}
		greq.Contents = append(greq.Contents, Content{Role: "user", Parts: responses})
	}

	c.p.log.Warn().Int("rounds", maxToolRounds).Msg("tool loop exhausted its round budget")
	send(ctx, out, c.p.factory.Error(
		fmt.Sprintf("tool loop stopped after %d rounds without a final answer", maxToolRounds),
		"ToolLoopExhausted",
	))
	return nil
}

// execute runs one function call and returns the result string plus
// the chunks describing it. Execution failures become result text fed
// back to the model, never call failures.
func (c *call) execute(ctx context.Context, fc FunctionCall) (string, []chunk.Chunk) {
	f := c.p.factory
	toolID := "mcp_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = []byte("{}")
	}

	bound, ok := c.tools[fc.Name]
	label := bound.label
	callChunk := f.New(chunk.TypeToolCall, "", map[string]string{
		chunk.MetaToolName:    fc.Name,
		chunk.MetaToolID:      toolID,
		chunk.MetaServerLabel: label,
		chunk.MetaParameters:  string(args),
		chunk.MetaStatus:      "starting",
	})

	var result string
	status := "completed"
	errFlag := "false"
	switch {
	case !ok:
		result = fmt.Sprintf("Tool %s not found in any MCP server", fc.Name)
		status = "error"
		errFlag = "true"
	default:
		result, err = bound.session.Call(ctx, fc.Name, fc.Args)
		if err != nil {
			result = fmt.Sprintf("Error executing tool: %v", err)
			status = "error"
			errFlag = "true"
		}
	}

	preview := result
	if len(preview) > resultPreviewLen {
		preview = preview[:resultPreviewLen]
	}
	resultChunk := f.New(chunk.TypeToolResult, preview, map[string]string{
		chunk.MetaToolName:     fc.Name,
		chunk.MetaToolID:       toolID,
		chunk.MetaServerLabel:  label,
		chunk.MetaStatus:       status,
		chunk.MetaError:        errFlag,
		chunk.MetaResultLength: fmt.Sprintf("%d", len(result)),
	})

	return result, []chunk.Chunk{callChunk, resultChunk}
}

// streamDirect streams the answer without any tool round-trips.
func (c *call) streamDirect(ctx context.Context, out chan<- chunk.Chunk, req processor.Request) error {
	stream, err := c.p.api.StreamGenerateContent(ctx, &Request{
		Model:             req.Model,
		Contents:          buildContents(req),
		SystemInstruction: systemInstruction(req, c.ready),
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if text := resp.text(); text != "" {
			if !send(ctx, out, c.p.factory.Text(text)) {
				return nil
			}
		}
	}
}

func (c *call) fail(ctx context.Context, out chan<- chunk.Chunk, err error) {
	if mcpauth.IsAuthError(err.Error()) || len(c.pending) > 0 {
		c.p.log.Debug().Err(err).Msg("suppressing auth-related generation error")
		return
	}
	c.p.log.Error().Err(err).Msg("generation failed")
	send(ctx, out, c.p.factory.Error(err.Error(), "APIError"))
}

func (c *call) flushPending(ctx context.Context, out chan<- chunk.Chunk, userID string) {
	for _, ck := range mcpauth.PendingChunks(ctx, c.p.factory, c.p.urls, userID, c.pending, c.p.log) {
		if !send(ctx, out, ck) {
			return
		}
	}
}

func buildContents(req processor.Request) []Content {
	contents := make([]Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == processor.RoleAssistant {
			role = "model"
		}
		contents = append(contents, Content{Role: role, Parts: []Part{{Text: m.Text}}})
	}
	return contents
}

func systemInstruction(req processor.Request, ready []mcpauth.ResolvedServer) *Content {
	system := processor.SystemPrompt(req.System, ready)
	if system == "" {
		return nil
	}
	return &Content{Parts: []Part{{Text: system}}}
}

func send(ctx context.Context, out chan<- chunk.Chunk, chunks ...chunk.Chunk) bool {
	for _, ck := range chunks {
		select {
		case out <- ck:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
