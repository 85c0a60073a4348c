package sheet

import "farewire/internal/services"

// Error markers re-exported so store callers classify failures without
// importing services directly.
var (
	// ErrSchema marks a missing required column; fatal for the invocation.
	ErrSchema = services.ErrSchema
	// ErrTransport marks retryable transport failures (rate limits, 5xx).
	ErrTransport = services.ErrTransient
	// ErrTransportTerminal marks auth or malformed-request failures that
	// must fail the run without retry.
	ErrTransportTerminal = services.ErrTerminal
)
