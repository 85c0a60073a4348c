// Package sqlitegrid stores the deal grid in a local SQLite database.
//
// Each grid row is one record holding a JSON-encoded cell array, so the
// adapter's whole-table reads and batched cell writes map onto a single
// query and a single transaction respectively. WAL mode plus a bounded busy
// retry keeps concurrent stage runs on the same host from tripping over the
// write lock.
package sqlitegrid
