// Package geminiapi is the REST client for the Gemini generateContent
// API.
package geminiapi

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

	"github.com/go-resty/resty/v2"

	"assistant-api/internal/domain/processor/gemini"
)

// Client implements the gemini.API interface.
type Client struct {
	restyClient *resty.Client
	httpClient  *http.Client
	baseURL     string
	apiKey      string
}

// NewClient creates a Gemini API client.
func NewClient(baseURL, apiKey string) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	return &Client{
		restyClient: resty.New().
			SetBaseURL(base).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", apiKey).
			SetTimeout(300 * time.Second),
		httpClient: &http.Client{Timeout: 300 * time.Second},
		baseURL:    base,
		apiKey:     apiKey,
	}
}

var _ gemini.API = (*Client)(nil)

// GenerateContent issues a blocking generation call. Tool-calling
// rounds use this path.
func (c *Client) GenerateContent(ctx context.Context, req *gemini.Request) (*gemini.Response, error) {
	var result gemini.Response
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/models/" + req.Model + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gemini api error: %s", resp.String())
	}
	return &result, nil
}

// StreamGenerateContent issues a streaming generation call using the
// SSE transport.
func (c *Client) StreamGenerateContent(ctx context.Context, req *gemini.Request) (gemini.ResponseStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/models/" + req.Model + ":streamGenerateContent?alt=sse"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini api error: %d %s", resp.StatusCode, string(body))
	}

	return &responseStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// responseStream implements gemini.ResponseStream backed by an
// http.Response body with SSE parsing.
type responseStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (s *responseStream) Recv() (*gemini.Response, error) {
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

		var response gemini.Response
		if err := json.Unmarshal([]byte(data), &response); err != nil {
			// Skip malformed chunks
			continue
		}

		return &response, nil
	}
}

func (s *responseStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
