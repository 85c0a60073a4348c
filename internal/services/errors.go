package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema marks a missing required column in the shared store. Fatal
	// for the current stage invocation; no partial processing happens.
	ErrSchema = errors.New("schema error")
	// ErrTransient marks retryable transport failures (rate limits, 5xx).
	ErrTransient = errors.New("transient failure")
	// ErrTerminal marks transport failures that must not be retried (auth,
	// malformed request).
	ErrTerminal = errors.New("terminal failure")
	// ErrValidation marks bad row payloads or collaborator responses.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent runner configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternalTool marks collaborator-side failures (render service down,
	// publisher rejected the post).
	ErrExternalTool = errors.New("external service error")
	// ErrTimeout marks collaborator call timeouts.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error should be retried on a later run
// rather than failing the whole invocation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// IsRunFatal reports whether an error must abort the entire stage invocation
// instead of being recorded against a single row.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrSchema) || errors.Is(err, ErrTerminal) || errors.Is(err, ErrConfiguration)
}

// Message extracts a human-readable summary suitable for the last_error
// column, stripped of the sentinel prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrSchema, ErrTransient, ErrTerminal, ErrValidation, ErrConfiguration, ErrExternalTool, ErrTimeout} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
