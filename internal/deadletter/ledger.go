// Package deadletter maintains the failure ledger: per-row attempt counts,
// last-error details, and promotion of rows that exhaust their retry budget
// to a terminal dead status.
package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/sheet"
)

// maxErrorLen bounds the last_error cell so one stack trace cannot bloat the
// store.
const maxErrorLen = 500

// attemptTimeFormat is the wire format of last_attempt_ts values.
const attemptTimeFormat = time.RFC3339

// Ledger records failed attempts against store rows.
type Ledger struct {
	adapter *sheet.Adapter
	// maxFails is the attempt budget; reaching it promotes the row.
	maxFails   int
	deadStatus deal.Status
	logger     *slog.Logger

	now func() time.Time
}

// NewLedger builds a ledger. maxFails values below one fall back to a single
// attempt.
func NewLedger(adapter *sheet.Adapter, maxFails int, deadStatus deal.Status, logger *slog.Logger) *Ledger {
	if maxFails < 1 {
		maxFails = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		adapter:    adapter,
		maxFails:   maxFails,
		deadStatus: deadStatus,
		logger:     logging.NewComponentLogger(logger, "deadletter"),
		now:        time.Now,
	}
}

// Attempt is the ledger's verdict on one failure.
type Attempt struct {
	// Writes carry the ledger columns; they ride in the caller's release
	// batch so the failure is recorded atomically with the status change.
	Writes []sheet.CellWrite
	// FailCount is the count after this attempt.
	FailCount int
	// Dead reports that the budget is exhausted and the row must be released
	// to the dead status instead of a retryable one.
	Dead bool
}

// RecordAttempt builds the ledger writes for one failed attempt. Ledger
// columns absent from the store degrade to skipped writes, mirroring a store
// that predates the ledger schema; fail_count then always reads as zero and
// rows never dead-letter.
func (l *Ledger) RecordAttempt(snap *sheet.Snapshot, d *deal.Deal, attemptErr error) Attempt {
	var att Attempt

	if snap.HasColumn(deal.ColFailCount) {
		if d.FailCount() >= l.maxFails {
			// Already at budget, so the count stays put. A requeued row that
			// fails again still dead-letters without inflating the ledger.
			att.FailCount = d.FailCount()
			att.Dead = true
		} else {
			att.FailCount = d.FailCount() + 1
			att.Writes = append(att.Writes, sheet.CellWrite{
				Row: d.RowNumber, Column: deal.ColFailCount, Value: strconv.Itoa(att.FailCount),
			})
			att.Dead = att.FailCount >= l.maxFails
		}
	}
	if snap.HasColumn(deal.ColLastError) {
		att.Writes = append(att.Writes, sheet.CellWrite{
			Row: d.RowNumber, Column: deal.ColLastError, Value: truncateError(attemptErr),
		})
	}
	if snap.HasColumn(deal.ColLastAttemptTS) {
		att.Writes = append(att.Writes, sheet.CellWrite{
			Row: d.RowNumber, Column: deal.ColLastAttemptTS,
			Value: l.now().UTC().Format(attemptTimeFormat),
		})
	}

	if att.Dead {
		l.logger.Warn("retry budget exhausted",
			logging.String(logging.FieldDealID, d.ID),
			logging.Int("fail_count", att.FailCount),
			logging.String(logging.FieldStatus, string(l.deadStatus)))
	}
	return att
}

// DeadStatus returns the terminal status rows are promoted to.
func (l *Ledger) DeadStatus() deal.Status {
	return l.deadStatus
}

// SweepResult summarizes one guard pass.
type SweepResult struct {
	Examined  int
	Requeued  int
	Promoted  int
	Truncated bool
}

// Sweep walks rows holding the input status and settles each one: rows at or
// over the budget are promoted to the dead status, the rest are requeued to
// the status recorded in their retry_status column. At most maxRows rows are
// touched per pass so a flood of failures cannot monopolize a run.
func (l *Ledger) Sweep(ctx context.Context, inputStatus deal.Status, maxRows int) (SweepResult, error) {
	var res SweepResult
	if maxRows < 1 {
		maxRows = 1
	}

	snap, err := l.adapter.ReadAll(ctx)
	if err != nil {
		return res, fmt.Errorf("sweep read: %w", err)
	}
	if err := snap.RequireColumns(deal.ColDealID, deal.ColStatus); err != nil {
		return res, err
	}
	hasRetry := snap.HasColumn(deal.ColRetryStatus)
	hasFails := snap.HasColumn(deal.ColFailCount)

	var writes []sheet.CellWrite
	for _, rec := range snap.Records {
		if res.Examined == maxRows {
			res.Truncated = true
			break
		}
		d := deal.FromRecord(rec)
		if d.RawStatus != string(inputStatus) {
			continue
		}
		res.Examined++

		if hasFails && d.FailCount() >= l.maxFails {
			writes = append(writes, sheet.CellWrite{
				Row: d.RowNumber, Column: deal.ColStatus, Value: string(l.deadStatus),
			})
			res.Promoted++
			l.logger.Warn("promoting row to dead status",
				logging.String(logging.FieldDealID, d.ID),
				logging.Int("fail_count", d.FailCount()))
			continue
		}

		retry := ""
		if hasRetry {
			retry = strings.TrimSpace(d.Get(deal.ColRetryStatus))
		}
		target, ok := deal.ParseStatus(retry)
		if !ok {
			// Without a recorded origin the row stays put for an operator.
			l.logger.Warn("error row has no usable retry status",
				logging.String(logging.FieldDealID, d.ID),
				logging.String("retry_status", retry))
			continue
		}
		writes = append(writes,
			sheet.CellWrite{Row: d.RowNumber, Column: deal.ColStatus, Value: string(target)},
			sheet.CellWrite{Row: d.RowNumber, Column: deal.ColLockTimestamp, Value: ""},
			sheet.CellWrite{Row: d.RowNumber, Column: deal.ColLockedBy, Value: ""},
		)
		res.Requeued++
		l.logger.Info("requeued row for retry",
			logging.String(logging.FieldDealID, d.ID),
			logging.String(logging.FieldStatus, string(target)))
	}

	if len(writes) > 0 {
		if err := l.adapter.WriteCells(ctx, snap, writes); err != nil {
			return res, fmt.Errorf("sweep write: %w", err)
		}
	}
	return res, nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}

// SetClock overrides the time source. Tests only.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}
