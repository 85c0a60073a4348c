package deal

import "testing"

func TestLegalTransitions(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusNew, StatusScoring},
		{StatusScoring, StatusScored},
		{StatusScored, StatusEnriching},
		{StatusEnriching, StatusPublishReady},
		{StatusPublishReady, StatusRendering},
		{StatusRendering, StatusReadyToPublish},
		{StatusReadyToPublish, StatusPostingInstagram},
		{StatusPostingInstagram, StatusPostedInstagram},
		{StatusPostedInstagram, StatusPostingTelegramFree},
		{StatusPostingTelegramFree, StatusPostedTelegramFree},
		{StatusPostedTelegramFree, StatusPostingTelegramVIP},
		{StatusPostingTelegramVIP, StatusPostedAll},
		{StatusScoring, StatusError},
		{StatusError, StatusNew},
		{StatusError, StatusErrorHard},
		{StatusRendering, StatusErrorHard},
	}
	for _, tc := range legal {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Errorf("expected %s -> %s to be legal: %v", tc.from, tc.to, err)
		}
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	illegal := []struct{ from, to Status }{
		{StatusNew, StatusScored},
		{StatusNew, StatusPostedAll},
		{StatusScored, StatusScoring},
		{StatusPostedAll, StatusNew},
		{StatusErrorHard, StatusError},
		{StatusReadyToPublish, StatusPostedInstagram},
	}
	for _, tc := range illegal {
		if err := ValidateTransition(tc.from, tc.to); err == nil {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	if err := ValidateTransition(Status("LIMBO"), StatusNew); err == nil {
		t.Fatal("unknown source status must be rejected")
	}
	if err := ValidateTransition(StatusNew, Status("LIMBO")); err == nil {
		t.Fatal("unknown target status must be rejected")
	}
}

func TestParseStatusNormalizes(t *testing.T) {
	status, ok := ParseStatus("  ready_to_publish ")
	if !ok || status != StatusReadyToPublish {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := ParseStatus("GARBAGE"); ok {
		t.Fatal("unknown status should not parse")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status should not parse")
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !IsTerminal(StatusPostedAll) || !IsTerminal(StatusErrorHard) {
		t.Fatal("POSTED_ALL and ERROR_HARD are terminal")
	}
	if IsTerminal(StatusError) {
		t.Fatal("ERROR is retryable, not terminal")
	}
	if !IsProcessing(StatusScoring) || IsProcessing(StatusScored) {
		t.Fatal("processing classification wrong")
	}
}
