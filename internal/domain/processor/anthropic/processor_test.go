package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/processor"
)

type fakeStream struct {
	events []*Event
	err    error
	pos    int
}

func (s *fakeStream) Recv() (*Event, error) {
	if s.pos >= len(s.events) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeAPI struct {
	stream  *fakeStream
	openErr error
	lastReq *Request
}

func (a *fakeAPI) CreateMessageStream(_ context.Context, req *Request) (EventStream, error) {
	a.lastReq = req
	if a.openErr != nil {
		return nil, a.openErr
	}
	return a.stream, nil
}

type stubTokens map[string]string

func (s stubTokens) AccessToken(_ context.Context, _ string, server mcpauth.Server) (string, error) {
	return s[server.Name], nil
}

type stubURLs struct{}

func (stubURLs) BuildAuthURL(_ context.Context, _ string, server mcpauth.Server) (string, string, error) {
	return "https://auth.example/" + server.Name, "state-" + server.Name, nil
}

func newProcessor(api API, tokens stubTokens) *Processor {
	gate := mcpauth.NewGate(tokens, zerolog.Nop())
	return New(api, gate, stubURLs{}, []string{"claude-sonnet"}, zerolog.Nop())
}

func stream(t *testing.T, p *Processor, req processor.Request) []chunk.Chunk {
	t.Helper()
	ch, err := p.Stream(context.Background(), req)
	require.NoError(t, err)
	var out []chunk.Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestStreamRejectsUnsupportedModel(t *testing.T) {
	p := newProcessor(&fakeAPI{stream: &fakeStream{}}, nil)

	_, err := p.Stream(context.Background(), processor.Request{Model: "gpt-4o"})
	var unsupported *processor.UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
}

func TestMessageLifecycle(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "message_start"},
		{Type: "content_block_start", ContentBlock: &ContentBlock{Type: "text"}},
		{Type: "content_block_delta", Delta: &Delta{Type: "text_delta", Text: "Hello"}},
		{Type: "message_delta", Delta: &Delta{StopReason: "end_turn"}},
		{Type: "message_stop"},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 4)
	assert.Equal(t, chunk.TypeLifecycle, chunks[0].Type)
	assert.Equal(t, "created", chunks[0].Metadata[chunk.MetaStatus])

	assert.Equal(t, "Hello", chunks[1].Text)
	assert.Equal(t, "Hello", chunks[1].Metadata[chunk.MetaDelta])

	assert.Equal(t, "end_turn", chunks[2].Metadata[chunk.MetaStopReason])

	assert.Equal(t, chunk.TypeCompletion, chunks[3].Type)
	assert.Equal(t, "response_complete", chunks[3].Metadata[chunk.MetaStatus])
	for _, c := range chunks {
		assert.Equal(t, "anthropic", c.Metadata[chunk.MetaProcessor])
	}
}

func TestThinkingBlockSeparatesFollowingText(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "content_block_start", ContentBlock: &ContentBlock{Type: "thinking", ID: "th_1"}},
		{Type: "content_block_delta", Delta: &Delta{Type: "thinking_delta", Thinking: "weighing options"}},
		{Type: "content_block_stop"},
		{Type: "content_block_start", ContentBlock: &ContentBlock{Type: "text"}},
		{Type: "content_block_delta", Delta: &Delta{Type: "text_delta", Text: "Answer"}},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 5)
	assert.Equal(t, chunk.TypeThinking, chunks[0].Type)
	assert.Equal(t, "th_1", chunks[0].Metadata[chunk.MetaReasoningSession])
	assert.Equal(t, "starting", chunks[0].Metadata[chunk.MetaStatus])

	assert.Equal(t, "weighing options", chunks[1].Text)
	assert.Equal(t, "in_progress", chunks[1].Metadata[chunk.MetaStatus])

	assert.Equal(t, chunk.TypeThinkingResult, chunks[2].Type)
	assert.Equal(t, "finished.", chunks[2].Text)

	assert.Equal(t, chunk.TypeText, chunks[3].Type)
	assert.Equal(t, "\n\n", chunks[3].Text)
	assert.Equal(t, "true", chunks[3].Metadata[chunk.MetaSeparator])

	assert.Equal(t, "Answer", chunks[4].Text)
}

func TestTextBlockWithoutSeparatorIsSilent(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "content_block_start", ContentBlock: &ContentBlock{Type: "text"}},
		{Type: "content_block_delta", Delta: &Delta{Type: "text_delta", Text: "plain"}},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 1)
	assert.Equal(t, "plain", chunks[0].Text)
}

func TestMCPToolUseFlow(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "content_block_start", ContentBlock: &ContentBlock{Type: "mcp_tool_use", ID: "tu_1", Name: "search", ServerName: "docs"}},
		{Type: "content_block_delta", Delta: &Delta{Type: "input_json_delta", PartialJSON: `{"q":"go"}`}},
		{Type: "content_block_stop"},
		{Type: "content_block_start", ContentBlock: &ContentBlock{
			Type:      "mcp_tool_result",
			ToolUseID: "tu_1",
			Content:   json.RawMessage(`[{"type":"text","text":"3 results"}]`),
		}},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 4)
	assert.Equal(t, chunk.TypeToolCall, chunks[0].Type)
	assert.Equal(t, "search", chunks[0].Metadata[chunk.MetaToolName])
	assert.Equal(t, "docs", chunks[0].Metadata[chunk.MetaServerLabel])
	assert.Equal(t, "starting", chunks[0].Metadata[chunk.MetaStatus])

	assert.Equal(t, "arguments_streaming", chunks[1].Metadata[chunk.MetaStatus])
	assert.Equal(t, "tu_1", chunks[1].Metadata[chunk.MetaToolID])
	assert.Equal(t, `{"q":"go"}`, chunks[1].Text)

	assert.Equal(t, "arguments_complete", chunks[2].Metadata[chunk.MetaStatus])
	assert.Equal(t, "docs", chunks[2].Metadata[chunk.MetaServerLabel])

	assert.Equal(t, chunk.TypeToolResult, chunks[3].Type)
	assert.Equal(t, "3 results", chunks[3].Text)
	assert.Equal(t, "completed", chunks[3].Metadata[chunk.MetaStatus])
	assert.Equal(t, "tu_1", chunks[3].Metadata[chunk.MetaToolID])
}

func TestMCPToolResultError(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "content_block_start", ContentBlock: &ContentBlock{
			Type:      "mcp_tool_result",
			ToolUseID: "tu_1",
			IsError:   true,
			Content:   json.RawMessage(`[{"type":"text","text":"boom"}]`),
		}},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 1)
	assert.Equal(t, "error", chunks[0].Metadata[chunk.MetaStatus])
	assert.Equal(t, "true", chunks[0].Metadata[chunk.MetaError])
	assert.Equal(t, "boom", chunks[0].Text)
}

func TestTextDeltaCarriesCitations(t *testing.T) {
	citations := `[{"type":"char_location","cited_text":"Go is fast","document_index":0,"start_char_index":10,"end_char_index":20}]`
	api := &fakeAPI{stream: &fakeStream{events: []*Event{
		{Type: "content_block_delta", Delta: &Delta{Type: "text_delta", Text: "Go is fast", Citations: json.RawMessage(citations)}},
	}}}
	p := newProcessor(api, nil)

	chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})

	require.Len(t, chunks, 1)
	assert.JSONEq(t, citations, chunks[0].Metadata["citations"])
}

func TestStreamErrorGating(t *testing.T) {
	t.Run("plain error surfaces", func(t *testing.T) {
		api := &fakeAPI{openErr: errors.New("connection reset")}
		p := newProcessor(api, nil)

		chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})
		require.Len(t, chunks, 1)
		assert.Equal(t, chunk.TypeError, chunks[0].Type)
	})

	t.Run("auth error suppressed", func(t *testing.T) {
		api := &fakeAPI{openErr: errors.New("401 unauthorized")}
		p := newProcessor(api, nil)

		chunks := stream(t, p, processor.Request{Model: "claude-sonnet"})
		assert.Empty(t, chunks)
	})

	t.Run("pending auth wins over error", func(t *testing.T) {
		api := &fakeAPI{openErr: errors.New("bad request")}
		p := newProcessor(api, stubTokens{})

		servers := []mcpauth.Server{{ID: 2, Name: "Jira", AuthType: mcpauth.AuthOAuthDiscovery}}
		chunks := stream(t, p, processor.Request{Model: "claude-sonnet", UserID: "u1", Servers: servers})

		require.Len(t, chunks, 1)
		assert.Equal(t, chunk.TypeAuthRequired, chunks[0].Type)
		assert.Equal(t, "Jira", chunks[0].Metadata[chunk.MetaServerName])
	})
}

func TestRequestBuild(t *testing.T) {
	api := &fakeAPI{stream: &fakeStream{}}
	p := newProcessor(api, stubTokens{"Docs": "tok-docs"})

	servers := []mcpauth.Server{
		{ID: 1, Name: "Docs", URL: "https://mcp.example/docs", AuthType: mcpauth.AuthOAuthDiscovery, Prompt: "Use docs for API questions."},
		{ID: 2, Name: "Core", URL: "https://mcp.example/core", AuthType: mcpauth.AuthStatic, Headers: `{"Authorization":"Bearer static-tok","X-Project-ID":"42"}`},
	}
	req := processor.Request{
		Model:         "claude-sonnet",
		UserID:        "u1",
		System:        "Be terse.",
		Messages:      []processor.Message{{Role: processor.RoleUser, Text: "hi"}},
		Servers:       servers,
		VectorStoreID: "vs_1",
	}
	stream(t, p, req)

	built := api.lastReq
	require.NotNil(t, built)
	assert.Equal(t, maxTokens, built.MaxTokens)
	assert.Equal(t, "enabled", built.Thinking.Type)
	assert.Equal(t, thinkingBudgetTokens, built.Thinking.BudgetTokens)
	assert.True(t, built.Stream)
	assert.Contains(t, built.System, "Be terse.")
	assert.Contains(t, built.System, "- Use docs for API questions.")

	require.Len(t, built.MCPServers, 2)
	assert.Equal(t, "url", built.MCPServers[0].Type)
	assert.Equal(t, "Docs", built.MCPServers[0].Name)
	assert.Equal(t, "tok-docs", built.MCPServers[0].AuthorizationToken)

	assert.Equal(t, "static-tok", built.MCPServers[1].AuthorizationToken)
	assert.Equal(t, "https://mcp.example/core?project_id=42", built.MCPServers[1].URL)

	require.Len(t, built.Tools, 2)
	assert.Equal(t, "mcp_toolset", built.Tools[0].Type)
	assert.Equal(t, "Docs", built.Tools[0].MCPServerName)

	assert.Equal(t, []string{mcpBeta, filesBeta}, built.Betas)
}
