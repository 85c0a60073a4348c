// Package instagram wraps the Graph API two-step media publish used by the
// instagram publish stage.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v20.0"
)

// Publisher defines the publish operation used by the instagram stage.
type Publisher interface {
	Publish(ctx context.Context, imageURL, caption string) (string, error)
}

// Client publishes media on behalf of one business account.
type Client struct {
	accessToken string
	accountID   string
	baseURL     string
	apiVersion  string
	httpClient  *http.Client
	// wait separates container creation from publish; the Graph API
	// needs a moment to ingest the image.
	wait func(context.Context) error
}

var _ Publisher = (*Client)(nil)

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

// WithBaseURL points the client at a different Graph host. Tests only.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithNoIngestDelay removes the ingest pause. Tests only.
func WithNoIngestDelay() Option {
	return func(c *Client) {
		c.wait = func(context.Context) error { return nil }
	}
}

// New creates an Instagram publish client.
func New(accessToken, accountID string, opts ...Option) (*Client, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("instagram access token required")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, errors.New("instagram business account id required")
	}
	client := &Client{
		accessToken: accessToken,
		accountID:   accountID,
		baseURL:     defaultBaseURL,
		apiVersion:  defaultAPIVersion,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	client.wait = func(ctx context.Context) error {
		select {
		case <-time.After(2 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Publish creates a media container for the image and publishes it,
// returning the published media id.
func (c *Client) Publish(ctx context.Context, imageURL, caption string) (string, error) {
	creationID, err := c.post(ctx, "media", url.Values{
		"image_url": {imageURL},
		"caption":   {caption},
	})
	if err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	mediaID, err := c.post(ctx, "media_publish", url.Values{
		"creation_id": {creationID},
	})
	if err != nil {
		return "", fmt.Errorf("publish media container: %w", err)
	}
	return mediaID, nil
}

func (c *Client) post(ctx context.Context, action string, form url.Values) (string, error) {
	form.Set("access_token", c.accessToken)
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.apiVersion, c.accountID, action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode graph response: %w", err)
	}
	if out.ID == "" {
		detail := strings.TrimSpace(out.Error.Message)
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", fmt.Errorf("graph %s failed: %s", action, detail)
	}
	return out.ID, nil
}
