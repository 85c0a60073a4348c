// Package runner drives one pipeline stage end to end: it takes the stage's
// single-instance lock, validates the store schema, claims eligible rows one
// at a time, executes the stage handler, and releases each row with the
// transition the state machine permits.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"farewire/internal/config"
	"farewire/internal/deadletter"
	"farewire/internal/deal"
	"farewire/internal/lease"
	"farewire/internal/logging"
	"farewire/internal/notifications"
	"farewire/internal/services"
	"farewire/internal/sheet"
	"farewire/internal/stage"
)

// Definition names a stage and the statuses it moves rows between.
type Definition struct {
	Name string
	// Wanted is the status a row must hold to be claimed.
	Wanted deal.Status
	// InFlight is stamped while the handler runs. A crashed worker leaves
	// rows here; stale-lock recovery picks them back up.
	InFlight deal.Status
	// Done is the status written on success. Handlers may release to a
	// different legal status by setting the deal's next status override.
	Done deal.Status
	// Required lists columns the stage cannot run without, beyond the lease
	// columns every stage needs.
	Required []string
	// MaxRows bounds rows processed per run. Zero means one row.
	MaxRows int
}

// Runner executes stage definitions against the shared store.
type Runner struct {
	cfg      *config.Config
	adapter  *sheet.Adapter
	leases   *lease.Manager
	ledger   *deadletter.Ledger
	notifier notifications.Service
	logger   *slog.Logger
}

// New wires a runner from its collaborators. A nil notifier degrades to
// no alerts; a nil logger to silence.
func New(cfg *config.Config, adapter *sheet.Adapter, leases *lease.Manager, ledger *deadletter.Ledger, notifier notifications.Service, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		adapter:  adapter,
		leases:   leases,
		ledger:   ledger,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "runner"),
	}
}

// Result summarizes one stage run.
type Result struct {
	Processed int
	Failed    int
	Dead      int
	Duration  time.Duration
}

// Run executes a stage until no eligible rows remain or its per-run bound is
// reached. Row failures are isolated; schema, configuration, and terminal
// transport errors abort the run.
func (r *Runner) Run(ctx context.Context, def Definition, handler stage.Handler) (Result, error) {
	var res Result
	if handler == nil {
		return res, fmt.Errorf("stage handler unavailable: %s", def.Name)
	}
	started := time.Now()
	defer func() { res.Duration = time.Since(started) }()

	runCtx := services.WithStage(ctx, def.Name)
	runCtx = services.WithWorkerID(runCtx, r.leases.WorkerID())
	runCtx = services.WithRunID(runCtx, uuid.NewString())
	runLogger := logging.WithContext(runCtx, r.logger)

	release, err := r.acquireLock(def.Name)
	if err != nil {
		return res, err
	}
	defer release()

	if health := handler.HealthCheck(runCtx); !health.Ready {
		return res, services.Wrap(services.ErrConfiguration, def.Name, "health check", health.Detail, nil)
	}
	if aware, ok := handler.(stage.LoggerAware); ok {
		aware.SetLogger(runLogger)
	}

	snap, err := r.adapter.ReadAll(runCtx)
	if err != nil {
		return res, err
	}
	required := append(append([]string(nil), deal.LeaseColumns...), def.Required...)
	if err := snap.RequireColumns(required...); err != nil {
		return res, err
	}
	r.reportUnknownStatuses(runLogger, snap)

	maxRows := def.MaxRows
	if maxRows < 1 {
		maxRows = 1
	}

	runLogger.Info("stage run started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("wanted_status", string(def.Wanted)),
		logging.Int("max_rows", maxRows))

	for res.Processed+res.Failed < maxRows {
		claimed, err := r.claimNext(runCtx, snap, def)
		if err != nil {
			return res, err
		}
		if claimed == nil {
			break
		}

		if err := r.processOne(runCtx, runLogger, snap, def, handler, claimed); err != nil {
			res.Failed++
			att, relErr := r.failRow(runCtx, runLogger, snap, def, claimed, err)
			if att.Dead {
				res.Dead++
			}
			if relErr != nil {
				return res, relErr
			}
			if services.IsRunFatal(err) {
				return res, err
			}
		} else {
			res.Processed++
		}

		// Claims mutate the store; work from a fresh snapshot each cycle.
		snap, err = r.adapter.ReadAll(runCtx)
		if err != nil {
			return res, err
		}
	}

	runLogger.Info("stage run completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("processed", res.Processed),
		logging.Int("failed", res.Failed))
	return res, nil
}

// claimNext prefers fresh work; when none remains it recovers rows a crashed
// worker left in the in-flight status behind a stale lock.
func (r *Runner) claimNext(ctx context.Context, snap *sheet.Snapshot, def Definition) (*deal.Deal, error) {
	claimed, err := r.leases.ClaimFirstAvailable(ctx, snap, def.Wanted, def.InFlight)
	if err != nil || claimed != nil {
		return claimed, err
	}
	return r.leases.ClaimFirstAvailable(ctx, snap, def.InFlight, def.InFlight)
}

func (r *Runner) processOne(ctx context.Context, logger *slog.Logger, snap *sheet.Snapshot, def Definition, handler stage.Handler, d *deal.Deal) error {
	rowCtx := services.WithDealID(ctx, d.ID)
	rowLogger := logging.WithContext(rowCtx, logger)

	rowLogger.Info("row claimed",
		logging.String(logging.FieldStatus, string(def.InFlight)))

	if err := handler.Prepare(rowCtx, d); err != nil {
		return err
	}
	if err := handler.Execute(rowCtx, d); err != nil {
		return err
	}

	next := def.Done
	if override := d.NextStatus(); override != "" {
		next = override
	}
	if err := deal.ValidateTransition(def.InFlight, next); err != nil {
		return services.Wrap(services.ErrValidation, def.Name, "release",
			fmt.Sprintf("refusing release of %s", d.ID), err)
	}
	if err := r.leases.Release(rowCtx, snap, d, next); err != nil {
		return err
	}
	rowLogger.Info("row completed",
		logging.String(logging.FieldEventType, "row_complete"),
		logging.String(logging.FieldStatus, string(next)))
	return nil
}

// failRow records the attempt in the failure ledger and releases the row,
// either back to the error status with its origin recorded for the requeue
// sweep, or straight to the dead status when the budget is spent. A store that
// refuses the release batch aborts the run; the row stays locked in-flight and
// is recovered once the lease goes stale.
func (r *Runner) failRow(ctx context.Context, logger *slog.Logger, snap *sheet.Snapshot, def Definition, d *deal.Deal, rowErr error) (deadletter.Attempt, error) {
	rowCtx := services.WithDealID(ctx, d.ID)
	rowLogger := logging.WithContext(rowCtx, logger)

	rowLogger.Error("row failed",
		logging.String(logging.FieldEventType, "row_failure"),
		logging.Error(rowErr))

	att := r.ledger.RecordAttempt(snap, d, rowErr)

	target := deal.StatusError
	writes := att.Writes
	if att.Dead {
		target = r.ledger.DeadStatus()
	} else if snap.HasColumn(deal.ColRetryStatus) {
		writes = append(writes, sheet.CellWrite{
			Row: d.RowNumber, Column: deal.ColRetryStatus, Value: string(def.Wanted),
		})
	}
	if err := r.leases.Release(rowCtx, snap, d, target, writes...); err != nil {
		rowLogger.Error("failed to release failed row", logging.Error(err))
		return att, fmt.Errorf("release failed row %s: %w", d.ID, err)
	}

	if r.notifier != nil {
		if att.Dead {
			if err := r.notifier.NotifyDeadLetter(rowCtx, d.ID, services.Message(rowErr)); err != nil {
				rowLogger.Debug("dead letter notification failed", logging.Error(err))
			}
		} else if err := r.notifier.NotifyError(rowCtx, rowErr, fmt.Sprintf("%s (deal %s)", def.Name, d.ID)); err != nil {
			rowLogger.Debug("error notification failed", logging.Error(err))
		}
	}
	return att, nil
}

// reportUnknownStatuses logs rows whose status is outside the known set.
// They are left untouched; an operator owns them.
func (r *Runner) reportUnknownStatuses(logger *slog.Logger, snap *sheet.Snapshot) {
	for _, rec := range snap.Records {
		raw := strings.TrimSpace(rec.Get(deal.ColStatus))
		if raw == "" {
			continue
		}
		if _, ok := deal.ParseStatus(raw); !ok {
			logger.Warn("row holds unknown status",
				logging.String(logging.FieldDealID, rec.Get(deal.ColDealID)),
				logging.String(logging.FieldStatus, raw))
		}
	}
}

// acquireLock takes the per-stage flock so two runs of the same stage on one
// host cannot interleave.
func (r *Runner) acquireLock(stageName string) (func(), error) {
	path := r.cfg.LockPath(stageName)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire stage lock %s: %w", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "lock",
			fmt.Sprintf("another %s run holds %s", stageName, path), nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release stage lock", logging.Error(err))
		}
		_ = os.Remove(path)
	}, nil
}

// WorkerID derives the worker identity: configured override first, then
// hostname plus pid.
func WorkerID(cfg *config.Config) string {
	if id := strings.TrimSpace(cfg.Runner.WorkerID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
