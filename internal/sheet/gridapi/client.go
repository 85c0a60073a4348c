// Package gridapi talks to a remote spreadsheet-style grid service over
// HTTP. Rate limits and server errors are retried with exponential backoff;
// auth failures and malformed requests fail the run immediately.
package gridapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"farewire/internal/sheet"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	retryAttempts      = 4
	retryInitialDelay  = 500 * time.Millisecond
	retryMaxDelay      = 8 * time.Second
)

// Client implements sheet.Grid against a remote grid API.
type Client struct {
	baseURL       string
	token         string
	spreadsheetID string
	tab           string
	httpClient    *http.Client
}

// Option customizes the grid client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a grid API client.
func NewClient(baseURL, token, spreadsheetID, tab string, opts ...Option) *Client {
	client := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:         strings.TrimSpace(token),
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		tab:           strings.TrimSpace(tab),
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type valuesResponse struct {
	Values [][]string `json:"values"`
}

type batchUpdateRequest struct {
	Updates []cellUpdate `json:"updates"`
}

type cellUpdate struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

type appendRequest struct {
	Rows [][]string `json:"rows"`
}

// Values fetches the full tab in one request.
func (c *Client) Values(ctx context.Context) ([][]string, error) {
	var parsed valuesResponse
	if err := c.do(ctx, http.MethodGet, c.tabPath("values"), nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Values, nil
}

// BatchUpdate applies all cell writes in one request. Partial application is
// not guaranteed on failure; callers re-read to determine actual state.
func (c *Client) BatchUpdate(ctx context.Context, cells []sheet.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	payload := batchUpdateRequest{Updates: make([]cellUpdate, 0, len(cells))}
	for _, cell := range cells {
		payload.Updates = append(payload.Updates, cellUpdate{Row: cell.Row, Col: cell.Col, Value: cell.Value})
	}
	return c.do(ctx, http.MethodPost, c.tabPath("values:batchUpdate"), payload, nil)
}

// AppendRows adds rows after the last data row.
func (c *Client) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, c.tabPath("values:append"), appendRequest{Rows: rows}, nil)
}

func (c *Client) tabPath(suffix string) string {
	return fmt.Sprintf("/v1/spreadsheets/%s/tabs/%s/%s",
		url.PathEscape(c.spreadsheetID), url.PathEscape(c.tab), suffix)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	endpoint := c.baseURL + path

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = encoded
	}

	delay := retryInitialDelay
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if next := delay * 2; next <= retryMaxDelay {
				delay = next
			}
		}

		lastErr = c.doOnce(ctx, method, endpoint, body, out)
		if lastErr == nil {
			return nil
		}
		var status *statusError
		if !errors.As(lastErr, &status) || !status.retryable {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: grid request: %v", sheet.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", sheet.ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type statusError struct {
	code      int
	retryable bool
	detail    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("grid api http %d: %s", e.code, e.detail)
}

func (e *statusError) Unwrap() error {
	if e.retryable {
		return sheet.ErrTransport
	}
	return sheet.ErrTransportTerminal
}

// classifyStatus separates retryable transport failures (429, 5xx) from
// terminal ones (auth, malformed request).
func classifyStatus(code int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	retryable := code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	return &statusError{code: code, retryable: retryable, detail: detail}
}
