package sheet

import "context"

// Cell addresses one positional cell write. Row and Col are 1-based; row 1 is
// the header row.
type Cell struct {
	Row   int
	Col   int
	Value string
}

// Grid is the transport beneath the adapter. Implementations must apply
// BatchUpdate atomically-or-not-at-all from the caller's perspective: on
// error the caller treats the whole batch as not applied and re-reads to
// determine actual state.
type Grid interface {
	// Values fetches the full table, header row first, in one round-trip.
	Values(ctx context.Context) ([][]string, error)
	// BatchUpdate applies all cell writes in a single round-trip.
	BatchUpdate(ctx context.Context, cells []Cell) error
	// AppendRows adds full-width rows after the last data row.
	AppendRows(ctx context.Context, rows [][]string) error
}
