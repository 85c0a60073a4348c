package sqlitegrid

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"farewire/internal/sheet"
)

// Grid implements sheet.Grid on top of a local SQLite database.
type Grid struct {
	db   *sql.DB
	tab  string
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the grid database.
func Open(path, tab string) (*Grid, error) {
	tab = strings.TrimSpace(tab)
	if tab == "" {
		return nil, errors.New("tab name is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	grid := &Grid{db: db, tab: tab, path: path}
	if err := grid.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return grid, nil
}

// Close closes the underlying database connection.
func (g *Grid) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Path returns the database file location.
func (g *Grid) Path() string {
	return g.path
}

func (g *Grid) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS grid_rows (
        tab TEXT NOT NULL,
        row_num INTEGER NOT NULL,
        cells TEXT NOT NULL,
        PRIMARY KEY (tab, row_num)
    )`
	if _, err := g.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create grid schema: %w", err)
	}
	return nil
}

// EnsureHeaders writes the header row when the tab is empty. Existing headers
// are left untouched; the store schema is owned by operators, not runners.
func (g *Grid) EnsureHeaders(ctx context.Context, headers []string) error {
	var count int
	row := g.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM grid_rows WHERE tab = ?`, g.tab)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("count grid rows: %w", err)
	}
	if count > 0 {
		return nil
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	return g.execWithRetry(ctx, `INSERT INTO grid_rows (tab, row_num, cells) VALUES (?, 1, ?)`, g.tab, string(encoded))
}

// Values fetches the full table in one query, header row first.
func (g *Grid) Values(ctx context.Context) ([][]string, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT cells FROM grid_rows WHERE tab = ? ORDER BY row_num`, g.tab)
	if err != nil {
		return nil, fmt.Errorf("%w: query grid: %v", sheet.ErrTransport, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan grid row: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
			return nil, fmt.Errorf("decode grid row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// BatchUpdate applies every cell write inside one transaction.
func (g *Grid) BatchUpdate(ctx context.Context, cells []sheet.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := g.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, cell := range cells {
			if err := g.applyCell(ctx, tx, cell); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		return nil
	})
}

func (g *Grid) applyCell(ctx context.Context, tx *sql.Tx, cell sheet.Cell) error {
	if cell.Row < 1 || cell.Col < 1 {
		return fmt.Errorf("cell out of range: row %d col %d", cell.Row, cell.Col)
	}

	var encoded string
	row := tx.QueryRowContext(ctx, `SELECT cells FROM grid_rows WHERE tab = ? AND row_num = ?`, g.tab, cell.Row)
	switch err := row.Scan(&encoded); {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("cell write targets missing row %d", cell.Row)
	case err != nil:
		return fmt.Errorf("read row %d: %w", cell.Row, err)
	}

	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return fmt.Errorf("decode row %d: %w", cell.Row, err)
	}
	for len(values) < cell.Col {
		values = append(values, "")
	}
	values[cell.Col-1] = cell.Value

	updated, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode row %d: %w", cell.Row, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE grid_rows SET cells = ? WHERE tab = ? AND row_num = ?`, string(updated), g.tab, cell.Row); err != nil {
		return fmt.Errorf("update row %d: %w", cell.Row, err)
	}
	return nil
}

// AppendRows inserts rows after the current last row.
func (g *Grid) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := g.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin append: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var last sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(row_num) FROM grid_rows WHERE tab = ?`, g.tab).Scan(&last); err != nil {
			return fmt.Errorf("find last row: %w", err)
		}
		next := last.Int64 + 1
		if !last.Valid {
			next = 1
		}
		for _, cells := range rows {
			encoded, err := json.Marshal(cells)
			if err != nil {
				return fmt.Errorf("encode appended row: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO grid_rows (tab, row_num, cells) VALUES (?, ?, ?)`, g.tab, next, string(encoded)); err != nil {
				return fmt.Errorf("insert row %d: %w", next, err)
			}
			next++
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit append: %w", err)
		}
		return nil
	})
}

func (g *Grid) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := g.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
