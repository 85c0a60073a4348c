// Package lease implements row claiming over the shared tabular store.
//
// A claim is advisory: it narrows the window in which two workers process the
// same row, it does not eliminate it. The store has no compare-and-swap, so
// the manager writes the claim, optionally re-reads the row, and backs off
// when another worker's identity landed first.
package lease

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/sheet"
)

// lockTimeFormat is the wire format of processing_lock values.
const lockTimeFormat = time.RFC3339

// Manager claims and releases rows on behalf of one worker.
type Manager struct {
	adapter    *sheet.Adapter
	workerID   string
	maxLockAge time.Duration
	verify     bool
	logger     *slog.Logger

	// now is replaced in tests.
	now func() time.Time
}

// Options tunes claim behaviour.
type Options struct {
	// MaxLockAge is the duration after which a held lock is treated as
	// abandoned. Zero means locks never go stale.
	MaxLockAge time.Duration
	// VerifyClaims re-reads the claimed row and abandons it when locked_by
	// holds another worker's identity.
	VerifyClaims bool
	Logger       *slog.Logger
}

// NewManager builds a manager for one worker identity.
func NewManager(adapter *sheet.Adapter, workerID string, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		adapter:    adapter,
		workerID:   workerID,
		maxLockAge: opts.MaxLockAge,
		verify:     opts.VerifyClaims,
		logger:     logging.NewComponentLogger(logger, "lease"),
		now:        time.Now,
	}
}

// WorkerID returns the identity stamped into locked_by on claims.
func (m *Manager) WorkerID() string {
	return m.workerID
}

// ClaimFirstAvailable scans the snapshot in store order and claims the first
// row whose status matches wanted and whose lock is absent or stale. It
// returns nil when no row is eligible. The returned deal reflects the
// re-read row when verification is enabled.
func (m *Manager) ClaimFirstAvailable(ctx context.Context, snap *sheet.Snapshot, wanted, inFlight deal.Status) (*deal.Deal, error) {
	for _, rec := range snap.Records {
		candidate := deal.FromRecord(rec)
		if !m.eligible(candidate, wanted) {
			continue
		}
		claimed, err := m.claim(ctx, snap, candidate, inFlight)
		if err != nil {
			return nil, err
		}
		if claimed == nil {
			// Lost the race; keep scanning.
			continue
		}
		return claimed, nil
	}
	return nil, nil
}

func (m *Manager) eligible(d *deal.Deal, wanted deal.Status) bool {
	if d.RawStatus != string(wanted) {
		return false
	}
	return m.lockFree(d)
}

// lockFree reports whether the row is unclaimed or its lock has gone stale.
// An unparseable lock timestamp counts as stale rather than wedging the row
// forever.
func (m *Manager) lockFree(d *deal.Deal) bool {
	if d.LockTimestamp == "" {
		return true
	}
	if m.maxLockAge <= 0 {
		return false
	}
	locked, err := parseLockTime(d.LockTimestamp)
	if err != nil {
		m.logger.Warn("treating unparseable lock as stale",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("lock_value", d.LockTimestamp))
		return true
	}
	age := m.now().UTC().Sub(locked)
	if age > m.maxLockAge {
		m.logger.Info("reclaiming stale lock",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("previous_holder", d.LockedBy),
			logging.String("lock_age", age.Round(time.Second).String()))
		return true
	}
	return false
}

func (m *Manager) claim(ctx context.Context, snap *sheet.Snapshot, d *deal.Deal, inFlight deal.Status) (*deal.Deal, error) {
	stamp := m.now().UTC().Format(lockTimeFormat)
	writes := []sheet.CellWrite{
		{Row: d.RowNumber, Column: deal.ColStatus, Value: string(inFlight)},
		{Row: d.RowNumber, Column: deal.ColLockTimestamp, Value: stamp},
		{Row: d.RowNumber, Column: deal.ColLockedBy, Value: m.workerID},
	}
	if err := m.adapter.WriteCells(ctx, snap, writes); err != nil {
		return nil, fmt.Errorf("claim row %d: %w", d.RowNumber, err)
	}

	if !m.verify {
		m.logger.Info("claimed row",
			logging.String(logging.FieldDealID, d.ID),
			logging.String(logging.FieldStatus, string(inFlight)))
		d.Status = inFlight
		d.RawStatus = string(inFlight)
		d.LockedBy = m.workerID
		d.LockTimestamp = stamp
		return d, nil
	}

	// Re-read by identity, not row number, in case rows moved under us.
	fresh, err := m.adapter.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify claim for %s: %w", d.ID, err)
	}
	rec, ok := m.findRow(fresh, d)
	if !ok {
		m.logger.Warn("claimed row vanished during verification",
			logging.String(logging.FieldDealID, d.ID))
		return nil, nil
	}
	reread := deal.FromRecord(rec)
	if reread.LockedBy != m.workerID {
		m.logger.Info("lost claim race",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("winner", reread.LockedBy))
		return nil, nil
	}
	m.logger.Info("claimed row",
		logging.String(logging.FieldDealID, reread.ID),
		logging.String(logging.FieldStatus, reread.RawStatus))
	return reread, nil
}

func (m *Manager) findRow(snap *sheet.Snapshot, d *deal.Deal) (*sheet.Record, bool) {
	if d.ID != "" {
		return snap.FindBy(deal.ColDealID, d.ID)
	}
	if d.RowNumber-2 < len(snap.Records) && d.RowNumber >= 2 {
		return snap.Records[d.RowNumber-2], true
	}
	return nil, false
}

// Release writes the row's accumulated updates plus the terminal status for
// this stage and clears both lock columns, all in one batch. Extra writes
// from coordinating subsystems ride in the same batch.
func (m *Manager) Release(ctx context.Context, snap *sheet.Snapshot, d *deal.Deal, to deal.Status, extra ...sheet.CellWrite) error {
	writes := append([]sheet.CellWrite(nil), d.Updates()...)
	writes = append(writes, extra...)
	writes = append(writes,
		sheet.CellWrite{Row: d.RowNumber, Column: deal.ColStatus, Value: string(to)},
		sheet.CellWrite{Row: d.RowNumber, Column: deal.ColLockTimestamp, Value: ""},
		sheet.CellWrite{Row: d.RowNumber, Column: deal.ColLockedBy, Value: ""},
	)
	if err := m.adapter.WriteCells(ctx, snap, writes); err != nil {
		return fmt.Errorf("release row %d to %s: %w", d.RowNumber, to, err)
	}
	m.logger.Info("released row",
		logging.String(logging.FieldDealID, d.ID),
		logging.String(logging.FieldStatus, string(to)))
	return nil
}

func parseLockTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	// Legacy rows carry a space-separated UTC stamp.
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
