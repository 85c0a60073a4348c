package sheet

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type stubGrid struct {
	values    [][]string
	valuesErr error

	batchErr error
	batched  []Cell
	appended [][]string
}

func (g *stubGrid) Values(context.Context) ([][]string, error) {
	if g.valuesErr != nil {
		return nil, g.valuesErr
	}
	return g.values, nil
}

func (g *stubGrid) BatchUpdate(_ context.Context, cells []Cell) error {
	if g.batchErr != nil {
		return g.batchErr
	}
	g.batched = append(g.batched, cells...)
	return nil
}

func (g *stubGrid) AppendRows(_ context.Context, rows [][]string) error {
	g.appended = append(g.appended, rows...)
	return nil
}

func TestReadAllPadsShortRows(t *testing.T) {
	grid := &stubGrid{values: [][]string{
		{"deal_id", "status", "price_gbp"},
		{"d1", "NEW"},
	}}

	snap, err := NewAdapter(grid).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(snap.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(snap.Records))
	}
	rec := snap.Records[0]
	if rec.RowNumber != 2 {
		t.Fatalf("row number = %d, want 2", rec.RowNumber)
	}
	if got := rec.Get("price_gbp"); got != "" {
		t.Fatalf("short row cell = %q, want empty", got)
	}
}

func TestReadAllRejectsEmptyTable(t *testing.T) {
	grid := &stubGrid{values: nil}
	if _, err := NewAdapter(grid).ReadAll(context.Background()); !errors.Is(err, ErrSchema) {
		t.Fatalf("error %v is not a schema error", err)
	}
}

func TestDisambiguateHeaders(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "blank headers get positional names",
			in:   []string{"deal_id", "", "status"},
			want: []string{"deal_id", "column_2", "status"},
		},
		{
			name: "duplicates get ordinal suffixes",
			in:   []string{"status", "status", "status"},
			want: []string{"status", "status_2", "status_3"},
		},
		{
			name: "suffixed name colliding with a literal header keeps advancing",
			in:   []string{"status", "status_2", "status"},
			want: []string{"status", "status_2", "status_2_2"},
		},
		{
			name: "whitespace trimmed before comparison",
			in:   []string{" deal_id ", "deal_id"},
			want: []string{"deal_id", "deal_id_2"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := disambiguateHeaders(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("disambiguateHeaders(%v) = %v, want %v", tc.in, got, tc.want)
			}
			again := disambiguateHeaders(tc.in)
			if !reflect.DeepEqual(got, again) {
				t.Fatalf("disambiguation not deterministic: %v vs %v", got, again)
			}
		})
	}
}

func TestWriteCellsSkipsAbsentColumns(t *testing.T) {
	grid := &stubGrid{values: [][]string{
		{"deal_id", "status"},
		{"d1", "NEW"},
	}}
	adapter := NewAdapter(grid)
	snap, err := adapter.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	err = adapter.WriteCells(context.Background(), snap, []CellWrite{
		{Row: 2, Column: "status", Value: "SCORING"},
		{Row: 2, Column: "fail_count", Value: "1"},
	})
	if err != nil {
		t.Fatalf("WriteCells: %v", err)
	}
	want := []Cell{{Row: 2, Col: 2, Value: "SCORING"}}
	if !reflect.DeepEqual(grid.batched, want) {
		t.Fatalf("batched = %v, want %v", grid.batched, want)
	}
}

func TestWriteCellsRejectsHeaderRow(t *testing.T) {
	grid := &stubGrid{values: [][]string{
		{"deal_id", "status"},
		{"d1", "NEW"},
	}}
	adapter := NewAdapter(grid)
	snap, err := adapter.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	err = adapter.WriteCells(context.Background(), snap, []CellWrite{
		{Row: 1, Column: "status", Value: "NEW"},
	})
	if err == nil {
		t.Fatal("expected error for header row write")
	}
}

func TestWriteCellsSurfacesBatchFailure(t *testing.T) {
	grid := &stubGrid{
		values: [][]string{
			{"deal_id", "status"},
			{"d1", "NEW"},
		},
		batchErr: ErrTransport,
	}
	adapter := NewAdapter(grid)
	snap, err := adapter.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	err = adapter.WriteCells(context.Background(), snap, []CellWrite{
		{Row: 2, Column: "status", Value: "SCORING"},
	})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error %v does not carry the transport marker", err)
	}
	if len(grid.batched) != 0 {
		t.Fatalf("failed batch recorded writes: %v", grid.batched)
	}
}

func TestRequireColumnsNamesEveryMissingColumn(t *testing.T) {
	grid := &stubGrid{values: [][]string{{"deal_id", "status"}}}
	snap, err := NewAdapter(grid).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	err = snap.RequireColumns("deal_id", "processing_lock", "locked_by")
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("error %v is not a schema error", err)
	}
	for _, name := range []string{"processing_lock", "locked_by"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name %s", err, name)
		}
	}
}

func TestAppendRecordsBuildsFullWidthRows(t *testing.T) {
	grid := &stubGrid{values: [][]string{{"deal_id", "status", "price_gbp"}}}
	adapter := NewAdapter(grid)
	snap, err := adapter.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	err = adapter.AppendRecords(context.Background(), snap, []map[string]string{
		{"deal_id": "d2", "status": "NEW"},
	})
	if err != nil {
		t.Fatalf("AppendRecords: %v", err)
	}
	want := [][]string{{"d2", "NEW", ""}}
	if !reflect.DeepEqual(grid.appended, want) {
		t.Fatalf("appended = %v, want %v", grid.appended, want)
	}
}
