package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazz-dev/dataprobe/internal/config"
	_ "modernc.org/sqlite"
)

// builtinFactories returns the factories for the backend kinds known
// out of the box. The sqlite driver ships with the binary; postgres,
// mysql, and hive use database/sql driver names registered by the
// embedding application.
func builtinFactories() map[string]Factory {
	return map[string]Factory{
		"sqlite":   sqlFactory("sqlite"),
		"postgres": sqlFactory("postgres"),
		"mysql":    sqlFactory("mysql"),
		"hive":     sqlFactory("hive"),
		"bigquery": newBigQueryHandle,
	}
}

func sqlFactory(driver string) Factory {
	return func(conn config.Connection) (Handle, error) {
		return openSQL(driver, conn.DSN)
	}
}

// sqlHandle runs queries through a database/sql connection pool.
type sqlHandle struct {
	db *sql.DB
}

func openSQL(driver, dsn string) (*sqlHandle, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	return &sqlHandle{db: db}, nil
}

func (h *sqlHandle) RunQuery(ctx context.Context, query string) ([][]any, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func (h *sqlHandle) Close() error {
	return h.db.Close()
}

// bigqueryHandle prefixes every query with a SQL-mode directive.
// BigQuery honors a #legacySQL / #standardSQL comment on the first
// line of the statement, which keeps mode selection out of the
// driver's hands.
type bigqueryHandle struct {
	inner     Handle
	directive string
}

func newBigQueryHandle(conn config.Connection) (Handle, error) {
	inner, err := openSQL("bigquery", conn.DSN)
	if err != nil {
		return nil, err
	}
	directive := "#standardSQL"
	if conn.UseLegacySQL {
		directive = "#legacySQL"
	}
	return &bigqueryHandle{inner: inner, directive: directive}, nil
}

func (h *bigqueryHandle) RunQuery(ctx context.Context, query string) ([][]any, error) {
	return h.inner.RunQuery(ctx, h.directive+"\n"+query)
}

func (h *bigqueryHandle) Close() error {
	return h.inner.Close()
}
