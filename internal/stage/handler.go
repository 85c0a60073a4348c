package stage

import (
	"context"
	"log/slog"

	"farewire/internal/deal"
)

// Handler describes the contract the stage runner needs from each pipeline
// stage.
type Handler interface {
	// Prepare validates prerequisites for one claimed deal before work
	// starts. Schema and configuration problems belong here.
	Prepare(context.Context, *deal.Deal) error
	// Execute performs the stage's work and queues column writes on the
	// deal. The runner releases the row afterwards.
	Execute(context.Context, *deal.Deal) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the runner hand stages a run-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
