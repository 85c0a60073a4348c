// Package duffel wraps the Duffel flight offers API used by deal discovery.
package duffel

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

const apiVersion = "v2"

// Segment is one flight leg inside a slice.
type Segment struct {
	DepartingAt string `json:"departing_at"`
}

// Slice is one direction of a roundtrip offer.
type Slice struct {
	Segments []Segment `json:"segments"`
}

// Offer is a single priced roundtrip.
type Offer struct {
	ID            string `json:"id"`
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	Owner         struct {
		Name string `json:"name"`
	} `json:"owner"`
	Slices []Slice `json:"slices"`
}

// OutboundDate returns the date portion of the first outbound departure.
func (o Offer) OutboundDate() string {
	return sliceDate(o.Slices, 0)
}

// ReturnDate returns the date portion of the first return departure.
func (o Offer) ReturnDate() string {
	return sliceDate(o.Slices, 1)
}

// Stops counts connections across both directions.
func (o Offer) Stops() int {
	total := 0
	for _, s := range o.Slices {
		if n := len(s.Segments) - 1; n > 0 {
			total += n
		}
	}
	return total
}

func sliceDate(slices []Slice, i int) string {
	if i >= len(slices) || len(slices[i].Segments) == 0 {
		return ""
	}
	at := slices[i].Segments[0].DepartingAt
	if len(at) < 10 {
		return ""
	}
	return at[:10]
}

// Query describes one roundtrip search.
type Query struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	CabinClass    string
	// MaxConnections bounds connections per direction.
	MaxConnections int
}

// Searcher defines the offer search operation used by discovery.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Offer, error)
}

// Client provides access to the Duffel offers API.
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	sleep      func(time.Duration)
}

var _ Searcher = (*Client)(nil)

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

// WithMaxRetries overrides the retry budget for retryable responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func withSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Duffel client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("duffel api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("duffel base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: 3,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type offerRequestPayload struct {
	Data struct {
		Slices         []map[string]string `json:"slices"`
		Passengers     []map[string]string `json:"passengers"`
		CabinClass     string              `json:"cabin_class"`
		MaxConnections int                 `json:"max_connections"`
	} `json:"data"`
}

// Search posts an offer request and returns the priced offers. Offers may be
// inlined in the response or fetched through the offer request's id; both
// shapes are handled. An empty result is not an error.
func (c *Client) Search(ctx context.Context, q Query) ([]Offer, error) {
	cabin := strings.ToLower(strings.TrimSpace(q.CabinClass))
	if cabin == "" {
		cabin = "economy"
	}
	var payload offerRequestPayload
	payload.Data.Slices = []map[string]string{
		{"origin": q.Origin, "destination": q.Destination, "departure_date": q.DepartureDate},
		{"origin": q.Destination, "destination": q.Origin, "departure_date": q.ReturnDate},
	}
	payload.Data.Passengers = []map[string]string{{"type": "adult"}}
	payload.Data.CabinClass = cabin
	payload.Data.MaxConnections = q.MaxConnections

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode offer request: %w", err)
	}

	var resp struct {
		Data struct {
			ID     string  `json:"id"`
			Offers []Offer `json:"offers"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/offer_requests", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Offers) > 0 {
		return resp.Data.Offers, nil
	}
	if resp.Data.ID == "" {
		return nil, nil
	}

	var offersResp struct {
		Data []Offer `json:"data"`
	}
	path := fmt.Sprintf("/offer_requests/%s/offers", resp.Data.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, &offersResp); err != nil {
		return nil, err
	}
	return offersResp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Duffel-Version", apiVersion)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("execute request: %w", err)
			c.sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode duffel response: %w", err)
			}
			return nil
		}

		resp.Body.Close()
		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("duffel returned %d", resp.StatusCode)
			c.sleep(backoff)
			backoff *= 2
			continue
		}
		return fmt.Errorf("duffel returned %d", resp.StatusCode)
	}
	return fmt.Errorf("duffel retries exhausted: %w", lastErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
