package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient POSTs each request to a single endpoint and reads the reply
// from the response body.
type HTTPClient struct {
	endpoint string
	httpc    *http.Client
}

// NewHTTPClient creates a client for the given endpoint URL. Deadlines come
// from the per-call context, not the underlying http.Client.
func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		httpc:    &http.Client{},
	}
}

func (c *HTTPClient) Call(ctx context.Context, msg Message) (*Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.CallRaw(ctx, body)
}

func (c *HTTPClient) CallRaw(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode}
	var msg Message
	if json.Unmarshal(data, &msg) == nil {
		out.Message = msg
	}
	return out, nil
}

// Get issues a plain GET and returns the status code. The body is not read:
// streaming endpoints (SSE) would block a full read indefinitely, and the
// transport probe only cares whether the endpoint answers.
func (c *HTTPClient) Get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Close is a no-op; HTTP connections are pooled by the transport.
func (c *HTTPClient) Close() error {
	return nil
}
