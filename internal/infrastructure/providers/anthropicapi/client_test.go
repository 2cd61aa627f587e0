package anthropicapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-api/internal/domain/processor/anthropic"
)

func TestCreateMessageStream(t *testing.T) {
	var gotKey, gotVersion, gotBeta string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotBeta = r.Header.Get("anthropic-beta")

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_start\n")
		io.WriteString(w, "data: {\"type\":\"message_start\"}\n\n")
		io.WriteString(w, "event: content_block_delta\n")
		io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n")
		io.WriteString(w, "event: message_stop\n")
		io.WriteString(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "ak-test")
	stream, err := client.CreateMessageStream(context.Background(), &anthropic.Request{
		Model: "claude-test",
		Betas: []string{"beta-one", "beta-two"},
	})
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "message_start", first.Type)

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "content_block_delta", second.Type)
	require.NotNil(t, second.Delta)
	assert.Equal(t, "Hi", second.Delta.Text)

	third, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "message_stop", third.Type)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, "ak-test", gotKey)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, "beta-one,beta-two", gotBeta)
}

func TestCreateMessageStreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "ak-test")
	_, err := client.CreateMessageStream(context.Background(), &anthropic.Request{Model: "claude-test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
