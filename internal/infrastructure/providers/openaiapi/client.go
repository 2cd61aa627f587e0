// Package openaiapi is the Resty/SSE-backed client for the OpenAI
// Responses and Files APIs.
package openaiapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assistant-api/internal/domain/processor/openai"
)

// Client implements the openai.API interface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Responses API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 300 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

var _ openai.API = (*Client)(nil)

// CreateResponseStream calls POST /responses with streaming enabled.
func (c *Client) CreateResponseStream(ctx context.Context, req *openai.Request) (openai.EventStream, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("openai api error: %d %s", resp.StatusCode, string(body))
	}

	return &eventStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// eventStream implements openai.EventStream backed by an http.Response
// body with SSE parsing. The event type rides inside the data payload,
// so "event:" lines are skipped.
type eventStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (s *eventStream) Recv() (*openai.Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return nil, io.EOF
		}

		var event openai.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed chunks
			continue
		}

		return &event, nil
	}
}

func (s *eventStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
