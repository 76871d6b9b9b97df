package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// valuesRow scans a fixed list of values into pointer destinations.
type valuesRow struct {
	values []any
	err    error
}

func (r valuesRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: got %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		if err := assign(d, r.values[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *bool:
		*d = v.(bool)
	case *time.Time:
		*d = v.(time.Time)
	case *[]byte:
		*d = v.([]byte)
	case *[]string:
		*d = v.([]string)
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return nil
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type sliceRows struct {
	testRowsBase
	rows [][]any
	idx  int
}

func (r *sliceRows) Close() {}

func (r *sliceRows) Err() error { return nil }

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	return valuesRow{values: r.rows[r.idx-1]}.Scan(dest...)
}

type call struct {
	query string
	args  []any
}

// stubSQL records statements and replays canned results.
type stubSQL struct {
	row      valuesRow
	rows     [][]any
	tag      pgconn.CommandTag
	err      error
	queries  []call
	lastExec call
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.lastExec = call{query: query, args: args}
	return s.tag, s.err
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, call{query: query, args: args})
	return s.row
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.queries = append(s.queries, call{query: query, args: args})
	if s.err != nil {
		return nil, s.err
	}
	return &sliceRows{rows: s.rows}, nil
}

var errBoom = errors.New("boom")
