package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const deviceKeyHeader = "X-Device-Key"

// Client is a thin HTTP client for the remote store service. It carries the
// device key used to authenticate every request.
type Client struct {
	baseURL    string
	deviceKey  string
	httpClient *http.Client
}

// NewClient creates a remote store client.
func NewClient(baseURL, deviceKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceKey:  deviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError reports a non-success HTTP response from the remote store.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote store returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// do issues one request. A non-nil in is sent as a JSON body; a non-nil out
// receives the decoded JSON response. Non-2xx responses become a StatusError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(deviceKeyHeader, c.deviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to remote store failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
