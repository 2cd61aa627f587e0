// Package anthropicapi is the SSE-backed client for the Anthropic
// Messages API.
package anthropicapi

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

	"assistant-api/internal/domain/processor/anthropic"
)

const apiVersion = "2023-06-01"

// Client implements the anthropic.API interface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Messages API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 300 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

var _ anthropic.API = (*Client)(nil)

// CreateMessageStream calls POST /messages with streaming enabled.
// Beta features requested on the request ride the anthropic-beta header.
func (c *Client) CreateMessageStream(ctx context.Context, req *anthropic.Request) (anthropic.EventStream, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if len(req.Betas) > 0 {
		httpReq.Header.Set("anthropic-beta", strings.Join(req.Betas, ","))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic api error: %d %s", resp.StatusCode, string(body))
	}

	return &eventStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// eventStream implements anthropic.EventStream. The event type rides
// inside the data payload, so "event:" lines are skipped.
type eventStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (s *eventStream) Recv() (*anthropic.Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var event anthropic.Event
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
