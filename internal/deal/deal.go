package deal

import (
	"strconv"
	"strings"
	"time"

	"farewire/internal/sheet"
)

// Deal is one unit of work: a snapshot of a store row plus the column writes
// a stage has accumulated for its release.
type Deal struct {
	// RowNumber is the ephemeral grid locator the row occupied when read.
	RowNumber int
	ID        string
	Status    Status
	// RawStatus preserves the stored value when it is not a known status.
	RawStatus string
	LockedBy  string
	// LockTimestamp is the raw processing_lock value; empty means unclaimed.
	LockTimestamp string

	rec        *sheet.Record
	updates    []sheet.CellWrite
	nextStatus Status
}

// FromRecord builds a Deal from a store record.
func FromRecord(rec *sheet.Record) *Deal {
	raw := rec.Get(ColStatus)
	status, _ := ParseStatus(raw)
	return &Deal{
		RowNumber:     rec.RowNumber,
		ID:            strings.TrimSpace(rec.Get(ColDealID)),
		Status:        status,
		RawStatus:     strings.TrimSpace(raw),
		LockedBy:      strings.TrimSpace(rec.Get(ColLockedBy)),
		LockTimestamp: strings.TrimSpace(rec.Get(ColLockTimestamp)),
		rec:           rec,
	}
}

// Get returns the raw cell value for a column.
func (d *Deal) Get(column string) string {
	if d == nil || d.rec == nil {
		return ""
	}
	return d.rec.Get(column)
}

// Set queues a stage-owned column write applied when the row is released.
func (d *Deal) Set(column, value string) {
	d.updates = append(d.updates, sheet.CellWrite{Row: d.RowNumber, Column: column, Value: value})
}

// Updates returns the queued column writes.
func (d *Deal) Updates() []sheet.CellWrite {
	return d.updates
}

// SetNextStatus overrides the stage's default release status. Used by
// stages whose outcome decides the next hop, like the publish fan-out.
func (d *Deal) SetNextStatus(status Status) {
	d.nextStatus = status
}

// NextStatus returns the override, or empty when the stage default applies.
func (d *Deal) NextStatus() Status {
	return d.nextStatus
}

// FailCount parses the fail_count column, defaulting to zero on absence or
// garbage.
func (d *Deal) FailCount() int {
	raw := strings.TrimSpace(d.Get(ColFailCount))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// PriceGBP parses the price column; ok is false when missing or invalid.
func (d *Deal) PriceGBP() (float64, bool) {
	raw := strings.TrimSpace(d.Get(ColPriceGBP))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Stops parses the stop count, defaulting to zero.
func (d *Deal) Stops() int {
	raw := strings.TrimSpace(d.Get(ColStops))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// OutboundDate parses the outbound travel date.
func (d *Deal) OutboundDate() (time.Time, bool) {
	return parseDate(d.Get(ColOutboundDate))
}

// ReturnDate parses the return travel date.
func (d *Deal) ReturnDate() (time.Time, bool) {
	return parseDate(d.Get(ColReturnDate))
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
