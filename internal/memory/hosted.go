package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the hosted mem0 API endpoint.
const DefaultBaseURL = "https://api.mem0.ai"

const hostedTimeout = 30 * time.Second

// HostedClient talks to the hosted mem0 REST API.
type HostedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HostedOption configures the client.
type HostedOption func(*HostedClient)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) HostedOption {
	return func(c *HostedClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HostedOption {
	return func(c *HostedClient) { c.httpClient = hc }
}

// NewHostedClient creates a mem0 API client.
func NewHostedClient(apiKey string, opts ...HostedOption) *HostedClient {
	c := &HostedClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: hostedTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HostedClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling mem0 API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading mem0 response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mem0 API %s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parsing mem0 response: %w", err)
		}
	}
	return nil
}

type hostedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Add stores a memory for userID.
func (c *HostedClient) Add(ctx context.Context, userID, text string, metadata map[string]interface{}) (*Item, error) {
	body := map[string]interface{}{
		"messages": []hostedMessage{{Role: "user", Content: text}},
		"user_id":  userID,
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	var results []Item
	if err := c.do(ctx, http.MethodPost, "/v1/memories/", body, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// The service may defer extraction; report what we sent.
		return &Item{Memory: text, UserID: userID, Metadata: metadata}, nil
	}
	item := results[0]
	if item.UserID == "" {
		item.UserID = userID
	}
	return &item, nil
}

// Search runs a semantic search over userID's memories.
func (c *HostedClient) Search(ctx context.Context, userID, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}
	body := map[string]interface{}{
		"query":   query,
		"user_id": userID,
		"limit":   limit,
	}
	var results []Item
	if err := c.do(ctx, http.MethodPost, "/v1/memories/search/", body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetAll lists every memory stored for userID.
func (c *HostedClient) GetAll(ctx context.Context, userID string) ([]Item, error) {
	path := "/v1/memories/?user_id=" + url.QueryEscape(userID)
	var results []Item
	if err := c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes one memory by ID.
func (c *HostedClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/memories/"+url.PathEscape(id)+"/", nil, nil)
}

// Status checks that the API key is accepted.
func (c *HostedClient) Status(ctx context.Context) (*Status, error) {
	status := &Status{Backend: "mem0"}
	if c.apiKey == "" {
		status.Detail = "MEM0_API_KEY is not set"
		return status, nil
	}
	if err := c.do(ctx, http.MethodGet, "/v1/memories/?user_id=claudekit-status-probe", nil, nil); err != nil {
		status.Detail = err.Error()
		return status, nil
	}
	status.Ready = true
	return status, nil
}

// Close implements Backend. The HTTP client holds no resources to free.
func (c *HostedClient) Close() error { return nil }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
