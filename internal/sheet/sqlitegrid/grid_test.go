package sqlitegrid

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"farewire/internal/sheet"
)

func openTestGrid(t *testing.T) *Grid {
	t.Helper()
	grid, err := Open(filepath.Join(t.TempDir(), "grid.db"), "RAW_DEALS")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = grid.Close() })
	return grid
}

func TestOpenRequiresTab(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "grid.db"), "  "); err == nil {
		t.Fatal("expected error for blank tab")
	}
}

func TestAppendAndValuesRoundTrip(t *testing.T) {
	grid := openTestGrid(t)
	ctx := context.Background()

	if err := grid.EnsureHeaders(ctx, []string{"deal_id", "status"}); err != nil {
		t.Fatalf("EnsureHeaders: %v", err)
	}
	if err := grid.AppendRows(ctx, [][]string{{"d1", "NEW"}, {"d2", "SCORED"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}

	values, err := grid.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	want := [][]string{
		{"deal_id", "status"},
		{"d1", "NEW"},
		{"d2", "SCORED"},
	}
	if !reflect.DeepEqual(values, want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
}

func TestEnsureHeadersLeavesExistingSchema(t *testing.T) {
	grid := openTestGrid(t)
	ctx := context.Background()

	if err := grid.EnsureHeaders(ctx, []string{"deal_id", "status"}); err != nil {
		t.Fatalf("EnsureHeaders: %v", err)
	}
	if err := grid.EnsureHeaders(ctx, []string{"other"}); err != nil {
		t.Fatalf("second EnsureHeaders: %v", err)
	}

	values, err := grid.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(values) != 1 || !reflect.DeepEqual(values[0], []string{"deal_id", "status"}) {
		t.Fatalf("header row = %v, want untouched original", values)
	}
}

func TestBatchUpdateTargetsCells(t *testing.T) {
	grid := openTestGrid(t)
	ctx := context.Background()

	if err := grid.EnsureHeaders(ctx, []string{"deal_id", "status", "locked_by"}); err != nil {
		t.Fatalf("EnsureHeaders: %v", err)
	}
	if err := grid.AppendRows(ctx, [][]string{{"d1", "NEW", ""}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}

	err := grid.BatchUpdate(ctx, []sheet.Cell{
		{Row: 2, Col: 2, Value: "SCORING"},
		{Row: 2, Col: 3, Value: "worker-1"},
	})
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}

	values, err := grid.Values(ctx)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if !reflect.DeepEqual(values[1], []string{"d1", "SCORING", "worker-1"}) {
		t.Fatalf("data row = %v", values[1])
	}
}
