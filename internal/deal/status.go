package deal

import "strings"

// Status represents the lifecycle of a deal row.
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusScoring             Status = "SCORING"
	StatusScored              Status = "SCORED"
	StatusEnriching           Status = "ENRICHING"
	StatusPublishReady        Status = "PUBLISH_READY"
	StatusRendering           Status = "RENDERING"
	StatusReadyToPublish      Status = "READY_TO_PUBLISH"
	StatusPostingInstagram    Status = "POSTING_INSTAGRAM"
	StatusPostedInstagram     Status = "POSTED_INSTAGRAM"
	StatusPostingTelegramFree Status = "POSTING_TELEGRAM_FREE"
	StatusPostedTelegramFree  Status = "POSTED_TELEGRAM_FREE"
	StatusPostingTelegramVIP  Status = "POSTING_TELEGRAM_VIP"
	StatusPostedAll           Status = "POSTED_ALL"
	StatusError               Status = "ERROR"
	StatusErrorHard           Status = "ERROR_HARD"
)

var allStatuses = []Status{
	StatusNew,
	StatusScoring,
	StatusScored,
	StatusEnriching,
	StatusPublishReady,
	StatusRendering,
	StatusReadyToPublish,
	StatusPostingInstagram,
	StatusPostedInstagram,
	StatusPostingTelegramFree,
	StatusPostedTelegramFree,
	StatusPostingTelegramVIP,
	StatusPostedAll,
	StatusError,
	StatusErrorHard,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// In-flight statuses mark a row claimed by a stage runner. Each stage owns
// its own in-flight status so a stale claim is only ever recovered by the
// stage that left it behind.
var processingStatuses = map[Status]struct{}{
	StatusScoring:             {},
	StatusEnriching:           {},
	StatusRendering:           {},
	StatusPostingInstagram:    {},
	StatusPostingTelegramFree: {},
	StatusPostingTelegramVIP:  {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. Unknown values are
// reported, never guessed.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether a status reflects an in-flight claim.
func IsProcessing(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether no stage will ever touch the row again.
func IsTerminal(status Status) bool {
	return status == StatusPostedAll || status == StatusErrorHard
}
