package thread

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assistant-api/internal/domain/chunk"
)

// Aggregator folds a chunk stream into thread state: the assistant's
// answer text, reasoning and tool activity items, images, and any auth
// or error outcome. One aggregator serves one response turn.
type Aggregator struct {
	messages []Message
	items    []*Item
	images   []chunk.Chunk

	reasoningSession string
	toolSession      string
	showThinking     bool
	activity         string

	auth         AuthPrompt
	authRequired bool
	errText      string

	log zerolog.Logger
}

// NewAggregator starts a turn from the transcript so far. The given
// messages seed the transcript; text chunks extend the trailing
// assistant message.
func NewAggregator(messages []Message, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		messages: append([]Message(nil), messages...),
		log:      log.With().Str("component", "aggregator").Logger(),
	}
}

// Apply folds one chunk into the state.
func (a *Aggregator) Apply(c chunk.Chunk) {
	switch c.Type {
	case chunk.TypeText:
		if n := len(a.messages); n > 0 && a.messages[n-1].Type == MessageAssistant {
			a.messages[n-1].Text += c.Text
		}

	case chunk.TypeThinking, chunk.TypeThinkingResult:
		a.applyReasoning(c)

	case chunk.TypeToolCall, chunk.TypeToolResult, chunk.TypeAction:
		a.applyTool(c)

	case chunk.TypeImage, chunk.TypeImagePartial:
		a.images = append(a.images, c)

	case chunk.TypeCompletion:
		a.showThinking = false

	case chunk.TypeAuthRequired:
		a.auth = AuthPrompt{
			ServerID:   c.Metadata[chunk.MetaServerID],
			ServerName: c.Metadata[chunk.MetaServerName],
			AuthURL:    c.Metadata[chunk.MetaAuthURL],
			State:      c.Metadata[chunk.MetaAuthState],
		}
		a.authRequired = true

	case chunk.TypeError:
		a.messages = append(a.messages, Message{Type: MessageError, Text: c.Text})
		a.errText = c.Text

	case chunk.TypeLifecycle, chunk.TypeAnnotation:
		// Transcript-neutral markers.

	default:
		a.log.Warn().Str("type", string(c.Type)).Msg("unhandled chunk type")
	}
}

func (a *Aggregator) applyReasoning(c chunk.Chunk) {
	if c.Type == chunk.TypeThinking {
		a.showThinking = true
		a.activity = "Thinking..."
	}

	session := a.reasoningSessionFor(c)
	item := a.item(session, ItemReasoning)

	switch c.Type {
	case chunk.TypeThinking:
		if _, isDelta := c.Metadata[chunk.MetaDelta]; isDelta {
			item.Text += c.Text
		} else if item.Text != "" && item.Text != c.Text {
			item.Text += "\n" + c.Text
		} else {
			item.Text = c.Text
		}
		item.Status = StatusInProgress
	case chunk.TypeThinkingResult:
		item.Status = StatusCompleted
		if c.Text != "" {
			item.Text += " " + c.Text
		}
	}
}

// reasoningSessionFor returns the chunk's session id, or continues or
// opens a local one. A new session starts when there is none yet, or
// when the last item was a tool call or a finished reasoning block.
func (a *Aggregator) reasoningSessionFor(c chunk.Chunk) string {
	if session := c.Metadata[chunk.MetaReasoningSession]; session != "" {
		a.reasoningSession = session
		return session
	}

	var last *Item
	if len(a.items) > 0 {
		last = a.items[len(a.items)-1]
	}

	needNew := a.reasoningSession == "" ||
		(last != nil && last.Type == ItemToolCall) ||
		(last != nil && last.Type == ItemReasoning && last.Status == StatusCompleted)
	if needNew {
		a.reasoningSession = "reasoning_" + uuid.NewString()[:8]
	}
	return a.reasoningSession
}

func (a *Aggregator) applyTool(c chunk.Chunk) {
	toolID := a.toolSessionFor(c)

	toolName := c.Metadata[chunk.MetaToolName]
	serverLabel := c.Metadata[chunk.MetaServerLabel]
	displayName := toolName
	if serverLabel != "" && toolName != "" && !strings.Contains(toolName, ".") {
		displayName = serverLabel + "." + toolName
	}

	if c.Type == chunk.TypeToolCall && displayName != "" {
		a.activity = fmt.Sprintf("Using tool: %s...", displayName)
	}

	item := a.item(toolID, ItemToolCall)

	switch c.Type {
	case chunk.TypeToolCall:
		if params, ok := c.Metadata[chunk.MetaParameters]; ok {
			item.Parameters = params
		} else if c.Text != "" {
			item.Parameters = c.Text
		}
		item.Text = c.Metadata[chunk.MetaDescription]
		if displayName != "" && item.ToolName == "" {
			item.ToolName = displayName
		}
		item.Status = StatusInProgress
	case chunk.TypeToolResult:
		item.Result = c.Text
		if c.Metadata[chunk.MetaError] == "true" || c.Metadata[chunk.MetaError] == "True" {
			item.Status = StatusError
			item.Error = c.Text
		} else {
			item.Status = StatusCompleted
		}
	case chunk.TypeAction:
		item.Text += "\n---\nAction: " + c.Text
	}
}

// toolSessionFor resolves the item id for a tool chunk, preferring the
// provider's tool id and falling back to a per-turn counter.
func (a *Aggregator) toolSessionFor(c chunk.Chunk) string {
	if id := c.Metadata[chunk.MetaToolID]; id != "" {
		a.toolSession = id
		return id
	}
	if c.Type != chunk.TypeToolCall && a.toolSession != "" {
		return a.toolSession
	}

	count := 0
	for _, item := range a.items {
		if item.Type == ItemToolCall {
			count++
		}
	}
	a.toolSession = fmt.Sprintf("tool_%d", count)
	return a.toolSession
}

func (a *Aggregator) item(id string, typ ItemType) *Item {
	for _, item := range a.items {
		if item.Type == typ && item.ID == id {
			return item
		}
	}
	item := &Item{ID: id, Type: typ, Status: StatusInProgress}
	a.items = append(a.items, item)
	return item
}

// Messages returns the transcript including this turn's updates.
func (a *Aggregator) Messages() []Message { return a.messages }

// Items returns the reasoning and tool activity recorded so far.
func (a *Aggregator) Items() []Item {
	out := make([]Item, len(a.items))
	for i, item := range a.items {
		out[i] = *item
	}
	return out
}

// Images returns accumulated image chunks.
func (a *Aggregator) Images() []chunk.Chunk { return a.images }

// Activity is the current user-facing activity line.
func (a *Aggregator) Activity() string { return a.activity }

// ShowThinking reports whether the reasoning pane should be visible.
func (a *Aggregator) ShowThinking() bool { return a.showThinking }

// AuthRequired reports whether an authorization prompt is pending and
// returns it.
func (a *Aggregator) AuthRequired() (AuthPrompt, bool) { return a.auth, a.authRequired }

// Err returns the stream's error text, empty when none occurred.
func (a *Aggregator) Err() string { return a.errText }
