package sheet

import (
	"context"
	"errors"
	"fmt"
)

// CellWrite is one header-addressed cell mutation.
type CellWrite struct {
	// Row is the 1-based grid row of the target record (Record.RowNumber).
	Row    int
	Column string
	Value  string
}

// Adapter maps header-addressed reads and writes onto a Grid transport.
type Adapter struct {
	grid Grid
}

// NewAdapter wraps a grid transport.
func NewAdapter(grid Grid) *Adapter {
	return &Adapter{grid: grid}
}

// ReadAll fetches the full table in one round-trip. Short rows are padded
// with empty cells; duplicate or blank headers are disambiguated
// deterministically. Header-to-index maps are derived per call, never cached
// across operations that could have changed row count.
func (a *Adapter) ReadAll(ctx context.Context) (*Snapshot, error) {
	values, err := a.grid.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: sheet has no header row", ErrSchema)
	}

	headers := disambiguateHeaders(values[0])
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	snap := &Snapshot{
		Headers:     headers,
		headerIndex: index,
		Records:     make([]*Record, 0, len(values)-1),
	}
	for i, row := range values[1:] {
		fields := make(map[string]string, len(headers))
		for col, name := range headers {
			if col < len(row) {
				fields[name] = row[col]
			} else {
				fields[name] = ""
			}
		}
		snap.Records = append(snap.Records, &Record{
			RowNumber: i + 2,
			fields:    fields,
		})
	}
	return snap, nil
}

// WriteCells applies all writes in a single batched round-trip using the
// snapshot's header positions. Columns absent from the header row are
// skipped; optional-column callers consult HasColumn once per run instead of
// per write. On transport failure the whole batch must be treated as not
// applied.
func (a *Adapter) WriteCells(ctx context.Context, snap *Snapshot, writes []CellWrite) error {
	if snap == nil {
		return errors.New("snapshot is required")
	}
	cells := make([]Cell, 0, len(writes))
	for _, w := range writes {
		col, ok := snap.ColumnIndex(w.Column)
		if !ok {
			continue
		}
		if w.Row < 2 {
			return fmt.Errorf("write cell: row %d is not a data row", w.Row)
		}
		cells = append(cells, Cell{Row: w.Row, Col: col, Value: w.Value})
	}
	if len(cells) == 0 {
		return nil
	}
	if err := a.grid.BatchUpdate(ctx, cells); err != nil {
		return fmt.Errorf("write cells: %w", err)
	}
	return nil
}

// AppendRecords adds new rows built from header-keyed field maps. Headers
// are re-read from the snapshot taken by the caller in the same run.
func (a *Adapter) AppendRecords(ctx context.Context, snap *Snapshot, records []map[string]string) error {
	if snap == nil {
		return errors.New("snapshot is required")
	}
	rows := make([][]string, 0, len(records))
	for _, fields := range records {
		row := make([]string, len(snap.Headers))
		for i, name := range snap.Headers {
			row[i] = fields[name]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := a.grid.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	return nil
}
