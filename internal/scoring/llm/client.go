// Package llm wraps the chat-completions API used to assess deals. The
// endpoint is OpenAI-compatible; the default deployment points it at
// DeepSeek.
package llm

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

// Assessment is the model's verdict on one deal.
type Assessment struct {
	PriceScore  float64 `json:"price_score"`
	TimingScore float64 `json:"timing_score"`
	Category    string  `json:"category"`
}

// Request carries the deal fields the model judges.
type Request struct {
	OriginCity         string
	DestinationCity    string
	DestinationCountry string
	OutboundDate       string
	ReturnDate         string
	Airline            string
	Stops              int
	PriceGBP           float64
	Theme              string
}

// Assessor defines the scoring operation used by the scoring stage.
type Assessor interface {
	Assess(ctx context.Context, req Request) (Assessment, error)
}

// Client calls a chat-completions endpoint and expects a strict JSON reply.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Assessor = (*Client)(nil)

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

// New creates an assessment client.
func New(apiKey, baseURL, model string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("scoring api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("scoring base url required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("scoring model required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

const systemPrompt = "You are a flight deal analyst for a UK travel deals " +
	"channel. Reply with strict JSON only, no prose: " +
	`{"price_score": 0-100, "timing_score": 0-100, "category": ` +
	`"winter_sun"|"surf"|"snow"|"city_breaks"|"shoulder"}`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Assess asks the model to judge one deal.
func (c *Client) Assess(ctx context.Context, req Request) (Assessment, error) {
	user := fmt.Sprintf(
		"Route: %s to %s (%s)\nDates: %s to %s\nAirline: %s, stops: %d\nPrice: GBP %.2f\nRoute theme hint: %s",
		req.OriginCity, req.DestinationCity, req.DestinationCountry,
		req.OutboundDate, req.ReturnDate, req.Airline, req.Stops,
		req.PriceGBP, req.Theme)

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	payload.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(payload)
	if err != nil {
		return Assessment{}, fmt.Errorf("encode assessment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Assessment{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Assessment{}, fmt.Errorf("assessment endpoint returned %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Assessment{}, fmt.Errorf("decode assessment response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Assessment{}, errors.New("assessment response has no choices")
	}

	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var out Assessment
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Assessment{}, fmt.Errorf("parse assessment JSON: %w", err)
	}
	return out, nil
}

// stripCodeFence removes a markdown fence some models wrap JSON in despite
// the response_format hint.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
