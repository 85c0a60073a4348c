package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farewire/internal/config"
	"farewire/internal/notifications"
)

func TestNewServiceReturnsNoopWhenWebhookMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.WebhookURL = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "scoring"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestWebhookServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		message  string
		tags     string
		priority string
	}
	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notify.WebhookURL = server.URL
	svc := notifications.NewService(&cfg)

	tests := []struct {
		name           string
		send           func() error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run completed clean",
			send: func() error {
				return svc.NotifyRunCompleted(context.Background(), "scoring", 5, 0, 3*time.Second)
			},
			expectTitle:   "Farewire - Run Complete",
			expectMessage: "scoring run complete: 5 rows in 3s",
			expectTags:    "farewire,scoring,completed",
		},
		{
			name: "run completed with failures",
			send: func() error {
				return svc.NotifyRunCompleted(context.Background(), "publish", 2, 1, 10*time.Second)
			},
			expectTitle:   "Farewire - Run Complete (with errors)",
			expectMessage: "publish run complete: 2 succeeded, 1 failed in 10s",
			expectTags:    "farewire,publish,completed",
		},
		{
			name: "deal published",
			send: func() error {
				return svc.NotifyDealPublished(context.Background(), "LHR-BCN", "instagram")
			},
			expectTitle:    "Farewire - Published",
			expectMessage:  "Published LHR-BCN to instagram",
			expectTags:     "farewire,publish,instagram",
			expectPriority: "high",
		},
		{
			name: "dead letter",
			send: func() error {
				return svc.NotifyDeadLetter(context.Background(), "deal-42", "render timed out")
			},
			expectTitle:    "Farewire - Dead Letter",
			expectMessage:  "Deal deal-42 exhausted its retry budget\nLast error: render timed out",
			expectTags:     "farewire,deadletter,alert",
			expectPriority: "high",
		},
		{
			name: "error with context",
			send: func() error {
				return svc.NotifyError(context.Background(), errors.New("api returned 500"), "scoring")
			},
			expectTitle:    "Farewire - Error",
			expectMessage:  "Error with scoring: api returned 500",
			expectTags:     "farewire,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.send(); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.message != tc.expectMessage {
				t.Errorf("message = %q, want %q", got.message, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestWebhookServiceSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notify.WebhookURL = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from 429 response")
	}
}
