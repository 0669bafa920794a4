package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazz-dev/dataprobe/internal/check"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS check_results (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    check_id         TEXT    NOT NULL,
    description      TEXT    NOT NULL DEFAULT '',
    executed_at      TEXT    NOT NULL,
    value            REAL    NOT NULL,
    min_threshold    REAL    NOT NULL,
    max_threshold    REAL    NOT NULL,
    within_threshold INTEGER NOT NULL CHECK(within_threshold IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_results_check ON check_results(check_id);
CREATE INDEX IF NOT EXISTS idx_results_executed_at ON check_results(executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_check_executed ON check_results(check_id, executed_at DESC);
`

// StoredResult is a persisted check result.
type StoredResult struct {
	ID              int64     `json:"id"`
	CheckID         string    `json:"check_id"`
	Description     string    `json:"description"`
	ExecutedAt      time.Time `json:"executed_at"`
	Value           float64   `json:"value"`
	MinThreshold    float64   `json:"min_threshold"`
	MaxThreshold    float64   `json:"max_threshold"`
	WithinThreshold bool      `json:"within_threshold"`
}

// DB wraps a SQLite results database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// WriteResult persists a result record. Fields arrive in the record's
// fixed order and are bound positionally, matching the table's column
// order.
func (d *DB) WriteResult(ctx context.Context, fields []check.Field) error {
	if len(fields) != 7 {
		return fmt.Errorf("expected 7 record fields, got %d", len(fields))
	}

	args := make([]any, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case time.Time:
			args[i] = v.UTC().Format(time.RFC3339Nano)
		case bool:
			if v {
				args[i] = 1
			} else {
				args[i] = 0
			}
		default:
			args[i] = v
		}
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO check_results (check_id, description, executed_at, value, min_threshold, max_threshold, within_threshold) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("inserting result for %q: %w", fields[0].Value, err)
	}
	return nil
}

// LatestResult returns the most recent result for the given check, or
// nil if none.
func (d *DB) LatestResult(ctx context.Context, checkID string) (*StoredResult, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, check_id, description, executed_at, value, min_threshold, max_threshold, within_threshold FROM check_results WHERE check_id = ? ORDER BY executed_at DESC LIMIT 1`,
		checkID,
	)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest result for %q: %w", checkID, err)
	}
	return r, nil
}

// History returns paginated result history for a check plus the total count.
func (d *DB) History(ctx context.Context, checkID string, limit, offset int) ([]StoredResult, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM check_results WHERE check_id = ?`, checkID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting results for %q: %w", checkID, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, check_id, description, executed_at, value, min_threshold, max_threshold, within_threshold FROM check_results WHERE check_id = ? ORDER BY executed_at DESC LIMIT ? OFFSET ?`,
		checkID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", checkID, err)
	}
	defer rows.Close()

	results, err := scanResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// AllLatest returns the most recent result for each check.
func (d *DB) AllLatest(ctx context.Context) ([]StoredResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, check_id, description, executed_at, value, min_threshold, max_threshold, within_threshold
		FROM check_results
		WHERE id IN (
			SELECT MAX(id) FROM check_results GROUP BY check_id
		)
		ORDER BY check_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// PassRate returns the percentage of passing results in the last N
// results for a check.
func (d *DB) PassRate(ctx context.Context, checkID string, last int) (float64, error) {
	var total int
	var passed sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(within_threshold)
		FROM (
			SELECT within_threshold FROM check_results WHERE check_id = ? ORDER BY executed_at DESC LIMIT ?
		)
	`, checkID, last).Scan(&total, &passed)
	if err != nil {
		return 0, fmt.Errorf("calculating pass rate for %q: %w", checkID, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(passed.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*StoredResult, error) {
	var r StoredResult
	var executedAt string
	var within int
	err := row.Scan(&r.ID, &r.CheckID, &r.Description, &executedAt, &r.Value, &r.MinThreshold, &r.MaxThreshold, &within)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, executedAt)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, executedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing executed_at %q: %w", executedAt, err)
		}
	}
	r.ExecutedAt = t
	r.WithinThreshold = within == 1
	return &r, nil
}

func scanResults(rows *sql.Rows) ([]StoredResult, error) {
	var results []StoredResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return results, nil
}
