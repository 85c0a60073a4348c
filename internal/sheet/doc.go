// Package sheet provides uniform access to the shared tabular store that
// coordinates every pipeline stage.
//
// The store is modelled as a header row plus data rows, addressed by 1-based
// grid coordinates. All reads fetch the full table in one round-trip and all
// writes are applied as a single batch; there is no per-row read API. Rows
// are located positionally but identified logically by their deal_id, so
// callers re-resolve rows by re-reading before writing (or accept the
// documented best-effort race window).
//
// The Grid interface abstracts the transport: a local SQLite database
// (sqlitegrid) for development and tests, or a remote spreadsheet-style API
// (gridapi) in production.
package sheet
