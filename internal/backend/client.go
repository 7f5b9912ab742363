package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Client talks to a local Ollama server
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL. Call timeouts are
// taken from the request context; httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ChatReply is the part of a /api/chat response the session cares about
type ChatReply struct {
	Model string
	// Content is the assistant text; HasContent is false when the envelope
	// carried no string at message.content.
	Content    string
	HasContent bool
	Done       bool
}

// ListModels fetches the models the server reports on /api/tags
func (c *Client) ListModels(ctx context.Context) ([]OllamaModel, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var tagsResp OllamaTagsResponse
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, &ClientError{Type: ErrTypeMalformed, Message: "failed to unmarshal response", Cause: err}
	}

	return tagsResp.Models, nil
}

// Chat sends the whole conversation to /api/chat as a single non-streaming call
func (c *Client) Chat(ctx context.Context, model string, messages []OllamaMessage) (*ChatReply, error) {
	reqBody := OllamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/chat", jsonData)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, &ClientError{Type: ErrTypeMalformed, Message: "response is not valid JSON"}
	}

	var apiResp OllamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		// fields of the wrong type are treated as absent
		c.logger.Warn("unexpected chat response shape", "error", err)
	}

	content := gjson.GetBytes(body, "message.content")
	reply := &ChatReply{
		Model:      apiResp.Model,
		Done:       apiResp.Done,
		HasContent: content.Type == gjson.String,
	}
	if reply.HasContent {
		reply.Content = apiResp.Message.Content
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Message: "failed to create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("failed to send request (is Ollama running?)", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if msg == "" {
			msg = resp.Status
		}
		c.logger.Warn("ollama returned error status", "path", path, "status", resp.StatusCode, "error", msg)
		return nil, &ClientError{Type: ErrTypeUpstream, Message: "API error: " + msg, StatusCode: resp.StatusCode}
	}

	return body, nil
}
