package sheet

import (
	"fmt"
	"strings"
)

// Record is one data row keyed by disambiguated header name. It is a
// point-in-time snapshot; mutations go through Adapter.WriteCells.
type Record struct {
	// RowNumber is the 1-based grid row this record occupied when read. It
	// is an ephemeral locator, not a stable key.
	RowNumber int

	fields map[string]string
}

// Get returns the cell value for a column, empty string when the column is
// absent or the row was short.
func (r *Record) Get(column string) string {
	if r == nil {
		return ""
	}
	return r.fields[column]
}

// Snapshot is one full-table read: headers plus records, in store order.
type Snapshot struct {
	Headers []string
	Records []*Record

	headerIndex map[string]int
}

// HasColumn reports whether the header row contains the named column.
func (s *Snapshot) HasColumn(name string) bool {
	_, ok := s.headerIndex[name]
	return ok
}

// ColumnIndex returns the 1-based grid column for a header name.
func (s *Snapshot) ColumnIndex(name string) (int, bool) {
	idx, ok := s.headerIndex[name]
	if !ok {
		return 0, false
	}
	return idx + 1, true
}

// RequireColumns fails with a schema error when any named column is missing.
// Stage runners call this once at run start; the returned error aborts the
// whole invocation.
func (s *Snapshot) RequireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if !s.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: sheet missing required columns: %s", ErrSchema, strings.Join(missing, ", "))
	}
	return nil
}

// FindBy returns the first record whose column equals value.
func (s *Snapshot) FindBy(column, value string) (*Record, bool) {
	for _, rec := range s.Records {
		if rec.Get(column) == value {
			return rec, true
		}
	}
	return nil, false
}

// disambiguateHeaders produces deterministic unique header names: blank
// headers become column_N (1-based position), repeated names get a _2, _3
// suffix in order of appearance.
func disambiguateHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			// A suffixed name could itself collide with a literal header;
			// count it so a later duplicate keeps advancing.
			seen[name]++
		}
		out[i] = name
	}
	return out
}
