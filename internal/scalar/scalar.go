// Package scalar executes queries whose result set must be exactly
// one row and one column.
package scalar

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hazz-dev/dataprobe/internal/connection"
)

// NoResultError is returned when a query produces zero rows.
type NoResultError struct {
	Query string
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("no result returned from query %q", e.Query)
}

// AmbiguousResultError is returned when a query produces more than one row.
type AmbiguousResultError struct {
	Query string
	Rows  int
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("query %q returned %d rows, expected exactly one", e.Query, e.Rows)
}

// WrongShapeError is returned when the single row has more or fewer
// than one column.
type WrongShapeError struct {
	Query   string
	Columns int
}

func (e *WrongShapeError) Error() string {
	return fmt.Sprintf("query %q row has %d columns, expected exactly one", e.Query, e.Columns)
}

// Executor runs scalar queries through a connection handle. The same
// executor serves measured-value queries and dynamic threshold queries.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an Executor. Pass nil logger to use the default logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Fetch runs query via h and returns the single numeric value of its
// result set. Any other result cardinality fails with a NoResultError,
// AmbiguousResultError, or WrongShapeError.
func (e *Executor) Fetch(ctx context.Context, h connection.Handle, query string) (float64, error) {
	rows, err := h.RunQuery(ctx, query)
	if err != nil {
		return 0, err
	}

	switch {
	case len(rows) == 0:
		return 0, &NoResultError{Query: query}
	case len(rows) > 1:
		e.logger.Debug("result set contains more than one row",
			"query", query,
			"rows", fmt.Sprintf("%v", rows),
		)
		return 0, &AmbiguousResultError{Query: query, Rows: len(rows)}
	case len(rows[0]) != 1:
		e.logger.Debug("result row does not contain exactly one column",
			"query", query,
			"row", fmt.Sprintf("%v", rows[0]),
		)
		return 0, &WrongShapeError{Query: query, Columns: len(rows[0])}
	}

	v, err := toFloat(rows[0][0])
	if err != nil {
		return 0, fmt.Errorf("reading scalar result: %w", err)
	}
	return v, nil
}

// toFloat converts the scalar types database/sql drivers hand back.
// Non-numeric values are a caller contract violation.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	case nil:
		return 0, fmt.Errorf("scalar value is NULL")
	default:
		return 0, fmt.Errorf("scalar value has non-numeric type %T", v)
	}
}
