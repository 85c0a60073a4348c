// Package renderapi wraps the promotional graphic service.
package renderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Payload carries the card fields. Keys are uppercase on the wire; the
// render templates address them this way.
type Payload struct {
	To    string `json:"TO"`
	From  string `json:"FROM"`
	Out   string `json:"OUT"`
	In    string `json:"IN"`
	Price string `json:"PRICE"`
}

// Renderer defines the render operation used by the render stage.
type Renderer interface {
	Render(ctx context.Context, p Payload) (string, error)
}

// Client posts render payloads to the graphic service.
type Client struct {
	url        string
	httpClient *http.Client
}

var _ Renderer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a render client. The service only answers POST /render; the
// suffix is appended when missing so a bare host configuration still works.
func New(renderURL string, opts ...Option) (*Client, error) {
	renderURL = strings.TrimRight(strings.TrimSpace(renderURL), "/")
	if renderURL == "" {
		return nil, errors.New("render url required")
	}
	if !strings.HasSuffix(renderURL, "/render") {
		renderURL += "/render"
	}
	client := &Client{
		url:        renderURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Render submits one card and returns the hosted image URL.
func (c *Client) Render(ctx context.Context, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("renderer returned %d", resp.StatusCode)
	}

	var out struct {
		ImageURL   string `json:"image_url"`
		GraphicURL string `json:"graphic_url"`
		URL        string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}

	// Older deployments answer graphic_url or url instead of image_url.
	for _, candidate := range []string{out.ImageURL, out.GraphicURL, out.URL} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate, nil
		}
	}
	return "", errors.New("render response missing image url")
}
