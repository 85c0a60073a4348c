package services_test

import (
	"errors"
	"testing"

	"farewire/internal/services"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := services.Wrap(services.ErrTransient, "score", "claim", "rate limited", errors.New("http 429"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("transient errors should be retryable")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "render", "post", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("nil marker should default to transient, got %v", err)
	}
}

func TestIsRunFatal(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		fatal  bool
	}{
		{"schema", services.ErrSchema, true},
		{"terminal", services.ErrTerminal, true},
		{"configuration", services.ErrConfiguration, true},
		{"transient", services.ErrTransient, false},
		{"validation", services.ErrValidation, false},
		{"external", services.ErrExternalTool, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := services.Wrap(tc.marker, "stage", "op", "detail", nil)
			if got := services.IsRunFatal(err); got != tc.fatal {
				t.Fatalf("IsRunFatal(%s) = %v, want %v", tc.name, got, tc.fatal)
			}
		})
	}
}

func TestMessageStripsSentinelPrefix(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "publish", "instagram", "media upload rejected", nil)
	got := services.Message(err)
	want := "publish: instagram: media upload rejected"
	if got != want {
		t.Fatalf("Message = %q, want %q", got, want)
	}
	if services.Message(nil) != "" {
		t.Fatal("Message(nil) should be empty")
	}
}
