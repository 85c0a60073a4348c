// Package testsupport provides shared fixtures for package tests: an
// in-memory grid transport, seeded configurations, and store helpers.
package testsupport

import (
	"context"
	"sync"
	"testing"

	"farewire/internal/deal"
	"farewire/internal/sheet"
)

// MemoryGrid is a sheet.Grid backed by an in-memory cell matrix.
type MemoryGrid struct {
	mu   sync.Mutex
	rows [][]string

	// FailValues, when set, is returned by the next Values call.
	FailValues error
	// FailBatch, when set, is returned by the next BatchUpdate call.
	FailBatch error
}

// NewMemoryGrid seeds a grid with a header row and data rows.
func NewMemoryGrid(headers []string, rows ...[]string) *MemoryGrid {
	grid := &MemoryGrid{}
	grid.rows = append(grid.rows, append([]string(nil), headers...))
	for _, row := range rows {
		grid.rows = append(grid.rows, append([]string(nil), row...))
	}
	return grid
}

func (g *MemoryGrid) Values(context.Context) ([][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.FailValues; err != nil {
		g.FailValues = nil
		return nil, err
	}
	out := make([][]string, len(g.rows))
	for i, row := range g.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (g *MemoryGrid) BatchUpdate(_ context.Context, cells []sheet.Cell) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.FailBatch; err != nil {
		g.FailBatch = nil
		return err
	}
	for _, cell := range cells {
		for len(g.rows) < cell.Row {
			g.rows = append(g.rows, nil)
		}
		row := g.rows[cell.Row-1]
		for len(row) < cell.Col {
			row = append(row, "")
		}
		row[cell.Col-1] = cell.Value
		g.rows[cell.Row-1] = row
	}
	return nil
}

func (g *MemoryGrid) AppendRows(_ context.Context, rows [][]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, row := range rows {
		g.rows = append(g.rows, append([]string(nil), row...))
	}
	return nil
}

// Cell returns the current value at 1-based grid coordinates.
func (g *MemoryGrid) Cell(row, col int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if row < 1 || row > len(g.rows) {
		return ""
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

// RowCount returns the number of grid rows including the header.
func (g *MemoryGrid) RowCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

// DealHeaders is the full column set used by pipeline tests.
var DealHeaders = deal.AllColumns

// DealRow builds a full-width row from a field map, leaving unset columns
// empty.
func DealRow(t testing.TB, fields map[string]string) []string {
	t.Helper()
	index := make(map[string]int, len(DealHeaders))
	for i, h := range DealHeaders {
		index[h] = i
	}
	row := make([]string, len(DealHeaders))
	for col, value := range fields {
		i, ok := index[col]
		if !ok {
			t.Fatalf("unknown column %q in test row", col)
		}
		row[i] = value
	}
	return row
}

// ReadSnapshot reads a snapshot through a fresh adapter, failing the test on
// error.
func ReadSnapshot(t testing.TB, grid sheet.Grid) *sheet.Snapshot {
	t.Helper()
	snap, err := sheet.NewAdapter(grid).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return snap
}
