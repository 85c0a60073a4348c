package deal

import (
	"fmt"

	"farewire/internal/services"
)

// transitions is the explicit legal edge set. A stage may only move a row
// out of the status it was waiting for, into its in-flight status, and from
// there into its success status or an error status. Encoding the edges here
// catches misconfigured or reordered stages before they corrupt rows.
var transitions = map[Status][]Status{
	StatusNew:                 {StatusScoring},
	StatusScoring:             {StatusScored, StatusError, StatusErrorHard},
	StatusScored:              {StatusEnriching},
	StatusEnriching:           {StatusPublishReady, StatusError, StatusErrorHard},
	StatusPublishReady:        {StatusRendering},
	StatusRendering:           {StatusReadyToPublish, StatusError, StatusErrorHard},
	StatusReadyToPublish:      {StatusPostingInstagram},
	StatusPostingInstagram:    {StatusPostedInstagram, StatusError, StatusErrorHard},
	StatusPostedInstagram:     {StatusPostingTelegramFree},
	StatusPostingTelegramFree: {StatusPostedTelegramFree, StatusError, StatusErrorHard},
	StatusPostedTelegramFree:  {StatusPostingTelegramVIP},
	StatusPostingTelegramVIP:  {StatusPostedAll, StatusError, StatusErrorHard},
	// Failed rows are requeued to the status recorded at failure time, or
	// promoted to the dead-letter state by the failure ledger.
	StatusError: {
		StatusNew, StatusScored, StatusPublishReady, StatusReadyToPublish,
		StatusPostedInstagram, StatusPostedTelegramFree, StatusErrorHard,
	},
	StatusPostedAll: {},
	StatusErrorHard: {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a validation error for illegal edges. Unknown
// source statuses are rejected, never guessed.
func ValidateTransition(from, to Status) error {
	if _, known := statusSet[from]; !known {
		return services.Wrap(services.ErrValidation, "", "transition",
			fmt.Sprintf("unknown status %q", string(from)), nil)
	}
	if _, known := statusSet[to]; !known {
		return services.Wrap(services.ErrValidation, "", "transition",
			fmt.Sprintf("unknown target status %q", string(to)), nil)
	}
	if !CanTransition(from, to) {
		return services.Wrap(services.ErrValidation, "", "transition",
			fmt.Sprintf("illegal transition %s -> %s", from, to), nil)
	}
	return nil
}

// NextStatuses returns the legal successors of a status.
func NextStatuses(from Status) []Status {
	next := transitions[from]
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}
