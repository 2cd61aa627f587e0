package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/model"
	"assistant-api/internal/domain/processor"
	"assistant-api/internal/domain/thread"
	"assistant-api/internal/infrastructure/metrics"
	"assistant-api/internal/infrastructure/repository/threadrepo"
)

// ThreadStore is the thread persistence surface the chat handler needs.
type ThreadStore interface {
	Create(ctx context.Context, userID, title string) (*thread.Thread, error)
	FindByUUID(ctx context.Context, id string) (*thread.Thread, error)
	AppendMessage(ctx context.Context, threadID uint, msg thread.Message) error
	Messages(ctx context.Context, threadID uint) ([]thread.Message, error)
}

// ServerSource lists the MCP servers enabled for model calls.
type ServerSource interface {
	ListEnabled(ctx context.Context) ([]mcpauth.Server, error)
}

// ChatHandler streams model responses over SSE. One stream per thread
// may run at a time; a second submission while a prior one is still
// streaming is rejected.
type ChatHandler struct {
	registry *model.Registry
	threads  ThreadStore
	servers  ServerSource
	log      zerolog.Logger

	// inflight holds the UUIDs of threads with a running stream.
	inflight sync.Map
}

// NewChatHandler constructs the handler.
func NewChatHandler(registry *model.Registry, threads ThreadStore, servers ServerSource, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		registry: registry,
		threads:  threads,
		servers:  servers,
		log:      log.With().Str("handler", "chat").Logger(),
	}
}

type chatRequest struct {
	ThreadID  string `json:"thread_id"`
	Model     string `json:"model"`
	Message   string `json:"message" binding:"required"`
	System    string `json:"system"`
	WebSearch bool   `json:"web_search"`
}

// Chat handles POST /v1/chat. The response is an SSE stream of
// normalized chunks terminated by a [DONE] marker.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := UserID(c)
	ctx := c.Request.Context()

	th, err := h.resolveThread(ctx, userID, &req)
	if err != nil {
		if errors.Is(err, threadrepo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, busy := h.inflight.LoadOrStore(th.UUID, struct{}{}); busy {
		c.JSON(http.StatusConflict, gin.H{"error": "a response is already streaming for this thread"})
		return
	}
	defer h.inflight.Delete(th.UUID)

	if err := h.threads.AppendMessage(ctx, th.ID, thread.Message{Type: thread.MessageUser, Text: req.Message}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history, err := h.threads.Messages(ctx, th.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	servers, err := h.servers.ListEnabled(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("listing mcp servers failed")
		servers = nil
	}

	modelID, proc, err := h.pickProcessor(req.Model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	procReq := processor.Request{
		UserID:        userID,
		ThreadID:      th.UUID,
		Model:         modelID,
		System:        req.System,
		Messages:      toProcessorMessages(history),
		Servers:       servers,
		VectorStoreID: th.VectorStoreID,
		WebSearch:     req.WebSearch,
	}

	stream, err := proc.Stream(ctx, procReq)
	if err != nil {
		status := http.StatusInternalServerError
		var unsupported *processor.UnsupportedModelError
		if errors.As(err, &unsupported) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.streamChunks(c, proc.Name(), th, history, stream)
}

func (h *ChatHandler) resolveThread(ctx context.Context, userID string, req *chatRequest) (*thread.Thread, error) {
	if req.ThreadID != "" {
		return h.threads.FindByUUID(ctx, req.ThreadID)
	}

	title := req.Message
	if len(title) > 80 {
		title = title[:80]
	}
	return h.threads.Create(ctx, userID, title)
}

func (h *ChatHandler) pickProcessor(modelID string) (string, processor.Processor, error) {
	if modelID != "" {
		proc, ok := h.registry.Get(modelID)
		if !ok {
			return "", nil, errors.New("unknown model: " + modelID)
		}
		return modelID, proc, nil
	}

	id, proc, ok := h.registry.Default()
	if !ok {
		return "", nil, errors.New("no models configured")
	}
	return id, proc, nil
}

// streamChunks forwards chunks to the client as SSE data events while
// folding them into the thread aggregator, then persists the new
// transcript entries.
func (h *ChatHandler) streamChunks(c *gin.Context, procName string, th *thread.Thread, history []thread.Message, stream <-chan chunk.Chunk) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Thread-ID", th.UUID)

	// The aggregator folds text into the trailing assistant message, so
	// seed an empty one for this turn.
	seed := append(append([]thread.Message(nil), history...), thread.Message{Type: thread.MessageAssistant})
	agg := thread.NewAggregator(seed, h.log)
	started := time.Now()

	for ck := range stream {
		agg.Apply(ck)
		metrics.RecordChunk(procName, string(ck.Type))

		payload, err := json.Marshal(ck)
		if err != nil {
			h.log.Error().Err(err).Msg("marshal chunk")
			continue
		}
		if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			h.log.Warn().Err(err).Msg("client went away")
			break
		}
		flusher.Flush()
	}

	c.Writer.WriteString("data: [DONE]\n\n")
	flusher.Flush()

	metrics.RecordStream(procName, time.Since(started).Seconds())

	// Persist everything the stream appended to the transcript. The
	// request context may already be cancelled when the client closed
	// the connection, so persistence gets its own deadline.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	final := agg.Messages()
	for _, msg := range final[len(history):] {
		if msg.Text == "" {
			continue
		}
		if err := h.threads.AppendMessage(persistCtx, th.ID, msg); err != nil {
			h.log.Error().Err(err).Str("thread", th.UUID).Msg("persisting message failed")
		}
	}
}

func toProcessorMessages(history []thread.Message) []processor.Message {
	msgs := make([]processor.Message, 0, len(history))
	for _, m := range history {
		switch m.Type {
		case thread.MessageUser:
			msgs = append(msgs, processor.Message{Role: processor.RoleUser, Text: m.Text})
		case thread.MessageAssistant:
			msgs = append(msgs, processor.Message{Role: processor.RoleAssistant, Text: m.Text})
		}
	}
	return msgs
}
