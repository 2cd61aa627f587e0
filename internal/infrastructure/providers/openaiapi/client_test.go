package openaiapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-api/internal/domain/processor/openai"
)

func TestCreateResponseStream(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: response.output_text.delta\n")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hello\"}\n\n")
		io.WriteString(w, ": keepalive comment\n\n")
		io.WriteString(w, "data: not json\n\n")
		io.WriteString(w, "data: {\"type\":\"response.completed\"}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test")
	stream, err := client.CreateResponseStream(context.Background(), &openai.Request{Model: "gpt-test"})
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "response.output_text.delta", first.Type)
	assert.Equal(t, "Hello", first.Delta)

	// The malformed line is skipped silently.
	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "response.completed", second.Type)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "text/event-stream", gotAccept)
}

func TestCreateResponseStreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-bad")
	_, err := client.CreateResponseStream(context.Background(), &openai.Request{Model: "gpt-test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
