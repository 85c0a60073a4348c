// Package notifications pushes operational alerts to an ntfy-compatible
// webhook. When no webhook is configured every notification is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"farewire/internal/config"
)

const userAgent = "Farewire/0.1.0"

// Service defines the alert surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, stage string) error
	NotifyRunCompleted(ctx context.Context, stage string, processed, failed int, duration time.Duration) error
	NotifyDealPublished(ctx context.Context, route, channel string) error
	NotifyDeadLetter(ctx context.Context, dealID, lastError string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed service when configured, otherwise a
// noop implementation.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notify.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (w *webhookService) NotifyRunStarted(ctx context.Context, stage string) error {
	stage = strings.TrimSpace(stage)
	data := payload{
		title:   "Farewire - Run Started",
		message: fmt.Sprintf("Started %s run", stage),
		tags:    []string{"farewire", stage, "started"},
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyRunCompleted(ctx context.Context, stage string, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	var title, message string
	if failed == 0 {
		title = "Farewire - Run Complete"
		message = fmt.Sprintf("%s run complete: %d rows in %s", stage, processed, duration)
	} else {
		title = "Farewire - Run Complete (with errors)"
		message = fmt.Sprintf("%s run complete: %d succeeded, %d failed in %s", stage, processed, failed, duration)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"farewire", stage, "completed"},
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyDealPublished(ctx context.Context, route, channel string) error {
	route = strings.TrimSpace(route)
	channel = strings.TrimSpace(channel)
	data := payload{
		title:    "Farewire - Published",
		message:  fmt.Sprintf("Published %s to %s", route, channel),
		tags:     []string{"farewire", "publish", channel},
		priority: "high",
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyDeadLetter(ctx context.Context, dealID, lastError string) error {
	dealID = strings.TrimSpace(dealID)
	lastError = strings.TrimSpace(lastError)
	message := fmt.Sprintf("Deal %s exhausted its retry budget", dealID)
	if lastError != "" {
		message = fmt.Sprintf("%s\nLast error: %s", message, lastError)
	}
	data := payload{
		title:    "Farewire - Dead Letter",
		message:  message,
		tags:     []string{"farewire", "deadletter", "alert"},
		priority: "high",
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Farewire - Error",
		message:  builder.String(),
		tags:     []string{"farewire", "error", "alert"},
		priority: "high",
	}
	return w.send(ctx, data)
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Farewire - Test",
		message:  "Notification system test",
		tags:     []string{"farewire", "test"},
		priority: "low",
	}
	return w.send(ctx, data)
}

func (w *webhookService) send(ctx context.Context, data payload) error {
	if w == nil || w.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("notification webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyDealPublished(context.Context, string, string) error { return nil }
func (noopService) NotifyDeadLetter(context.Context, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
