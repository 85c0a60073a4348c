package deadletter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"farewire/internal/deal"
	"farewire/internal/sheet"
	"farewire/internal/testsupport"
)

func newLedger(grid *testsupport.MemoryGrid, maxFails int) *Ledger {
	l := NewLedger(sheet.NewAdapter(grid), maxFails, deal.StatusErrorHard, nil)
	l.SetClock(func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})
	return l
}

func TestRecordAttemptIncrementsAndStamps(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID:    "d1",
			deal.ColStatus:    "SCORING",
			deal.ColFailCount: "1",
		}),
	)
	l := newLedger(grid, 3)
	snap := testsupport.ReadSnapshot(t, grid)
	rec, _ := snap.FindBy(deal.ColDealID, "d1")
	d := deal.FromRecord(rec)

	att := l.RecordAttempt(snap, d, errors.New("scoring api timed out"))
	if att.FailCount != 2 {
		t.Fatalf("fail count = %d, want 2", att.FailCount)
	}
	if att.Dead {
		t.Fatal("two of three attempts should not dead-letter")
	}

	got := map[string]string{}
	for _, w := range att.Writes {
		got[w.Column] = w.Value
	}
	if got[deal.ColFailCount] != "2" {
		t.Fatalf("fail_count write = %q, want 2", got[deal.ColFailCount])
	}
	if got[deal.ColLastError] != "scoring api timed out" {
		t.Fatalf("last_error write = %q", got[deal.ColLastError])
	}
	if got[deal.ColLastAttemptTS] != "2026-08-30T12:00:00Z" {
		t.Fatalf("last_attempt_ts write = %q", got[deal.ColLastAttemptTS])
	}
}

func TestRecordAttemptReachesBudgetInSameCall(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID:    "d1",
			deal.ColStatus:    "SCORING",
			deal.ColFailCount: "2",
		}),
	)
	l := newLedger(grid, 3)
	snap := testsupport.ReadSnapshot(t, grid)
	rec, _ := snap.FindBy(deal.ColDealID, "d1")

	att := l.RecordAttempt(snap, deal.FromRecord(rec), errors.New("boom"))
	if att.FailCount != 3 || !att.Dead {
		t.Fatalf("third failure must dead-letter: count=%d dead=%v", att.FailCount, att.Dead)
	}
}

func TestRecordAttemptHoldsCountAtBudget(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID:    "d1",
			deal.ColStatus:    "SCORING",
			deal.ColFailCount: "3",
		}),
	)
	l := newLedger(grid, 3)
	snap := testsupport.ReadSnapshot(t, grid)
	rec, _ := snap.FindBy(deal.ColDealID, "d1")

	att := l.RecordAttempt(snap, deal.FromRecord(rec), errors.New("boom"))
	if att.FailCount != 3 || !att.Dead {
		t.Fatalf("row at budget must dead-letter without counting up: count=%d dead=%v",
			att.FailCount, att.Dead)
	}

	got := map[string]string{}
	for _, w := range att.Writes {
		got[w.Column] = w.Value
	}
	if _, wrote := got[deal.ColFailCount]; wrote {
		t.Fatalf("fail_count incremented past budget: wrote %q, want it held at 3",
			got[deal.ColFailCount])
	}
	if got[deal.ColLastError] != "boom" {
		t.Fatalf("last_error write = %q, want it stamped", got[deal.ColLastError])
	}
	if got[deal.ColLastAttemptTS] == "" {
		t.Fatal("last_attempt_ts must still be stamped")
	}
}

func TestRecordAttemptTruncatesLongErrors(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "d1",
			deal.ColStatus: "SCORING",
		}),
	)
	l := newLedger(grid, 3)
	snap := testsupport.ReadSnapshot(t, grid)
	rec, _ := snap.FindBy(deal.ColDealID, "d1")

	att := l.RecordAttempt(snap, deal.FromRecord(rec), errors.New(strings.Repeat("x", 900)))
	for _, w := range att.Writes {
		if w.Column == deal.ColLastError && len(w.Value) != 500 {
			t.Fatalf("last_error length = %d, want 500", len(w.Value))
		}
	}
}

func TestRecordAttemptDegradedSchema(t *testing.T) {
	grid := testsupport.NewMemoryGrid(
		[]string{deal.ColDealID, deal.ColStatus, deal.ColLockTimestamp, deal.ColLockedBy},
		[]string{"d1", "SCORING", "", ""},
	)
	l := newLedger(grid, 1)
	snap := testsupport.ReadSnapshot(t, grid)
	rec, _ := snap.FindBy(deal.ColDealID, "d1")

	att := l.RecordAttempt(snap, deal.FromRecord(rec), errors.New("boom"))
	if len(att.Writes) != 0 {
		t.Fatalf("expected no writes without ledger columns, got %d", len(att.Writes))
	}
	if att.Dead {
		t.Fatal("rows must never dead-letter without a fail_count column")
	}
}

func TestSweepPromotesAndRequeues(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "exhausted", deal.ColStatus: "ERROR",
			deal.ColFailCount: "3", deal.ColRetryStatus: "NEW",
		}),
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "retryable", deal.ColStatus: "ERROR",
			deal.ColFailCount: "1", deal.ColRetryStatus: "SCORED",
			deal.ColLockTimestamp: "2026-08-30T11:00:00Z", deal.ColLockedBy: "worker-b",
		}),
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "healthy", deal.ColStatus: "NEW",
		}),
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "orphan", deal.ColStatus: "ERROR",
			deal.ColFailCount: "1", deal.ColRetryStatus: "",
		}),
	)
	l := newLedger(grid, 3)

	res, err := l.Sweep(context.Background(), deal.StatusError, 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Examined != 3 || res.Promoted != 1 || res.Requeued != 1 || res.Truncated {
		t.Fatalf("unexpected result %+v", res)
	}

	after := testsupport.ReadSnapshot(t, grid)
	status := func(id string) string {
		rec, ok := after.FindBy(deal.ColDealID, id)
		if !ok {
			t.Fatalf("row %s missing", id)
		}
		return rec.Get(deal.ColStatus)
	}
	if got := status("exhausted"); got != "ERROR_HARD" {
		t.Fatalf("exhausted row status = %q, want ERROR_HARD", got)
	}
	if got := status("retryable"); got != "SCORED" {
		t.Fatalf("retryable row status = %q, want SCORED", got)
	}
	if got := status("orphan"); got != "ERROR" {
		t.Fatalf("orphan row status = %q, want ERROR untouched", got)
	}
	if got := status("healthy"); got != "NEW" {
		t.Fatalf("healthy row status = %q, want NEW untouched", got)
	}

	rec, _ := after.FindBy(deal.ColDealID, "retryable")
	if rec.Get(deal.ColLockTimestamp) != "" || rec.Get(deal.ColLockedBy) != "" {
		t.Fatal("requeue must clear lock columns")
	}
}

func TestSweepBoundsRowsPerRun(t *testing.T) {
	rows := make([][]string, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		rows = append(rows, testsupport.DealRow(t, map[string]string{
			deal.ColDealID: id, deal.ColStatus: "ERROR",
			deal.ColFailCount: "1", deal.ColRetryStatus: "NEW",
		}))
	}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders, rows...)
	l := newLedger(grid, 3)

	res, err := l.Sweep(context.Background(), deal.StatusError, 5)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Examined != 5 || !res.Truncated {
		t.Fatalf("expected 5 examined with truncation, got %+v", res)
	}
	if res.Requeued != 5 {
		t.Fatalf("requeued = %d, want 5", res.Requeued)
	}
}

func TestSweepRejectsUnknownRetryStatus(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "d1", deal.ColStatus: "ERROR",
			deal.ColFailCount: "1", deal.ColRetryStatus: "BANANA",
		}),
	)
	l := newLedger(grid, 3)

	res, err := l.Sweep(context.Background(), deal.StatusError, 5)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Requeued != 0 || res.Promoted != 0 {
		t.Fatalf("unknown retry status must leave the row alone: %+v", res)
	}
}
