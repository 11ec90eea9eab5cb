package query

import (
	"bankcap/internal/etlerr"
	"bankcap/lib/telemetry"
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("bankcap.internal.query")

var readPrefixes = []string{"SELECT", "WITH", "EXPLAIN", "PRAGMA"}

// isReadQuery rejects statements that are not reads by their first keyword.
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// ResultSet is a tabular query result in row order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

func (r ResultSet) RowCount() int {
	return len(r.Rows)
}

// Column returns every value of `name` in row order.
func (r ResultSet) Column(name string) ([]any, bool) {
	idx := -1
	for i, c := range r.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	values := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Render writes the result as a rounded table followed by its row count.
func (r ResultSet) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)

	header := make(table.Row, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range r.Rows {
		t.AppendRow(table.Row(row))
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", r.RowCount())})
	t.Render()
}

// Runner executes read-only queries against the loaded store. The caller
// owns the connection.
type Runner struct {
	DB      *sql.DB
	Timeout time.Duration
}

func (r Runner) Run(ctx context.Context, query string) (ResultSet, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	if !isReadQuery(query) {
		return ResultSet{}, etlerr.Query(nil, "only read queries are allowed: %q", query)
	}
	if !singleStatement(query) {
		return ResultSet{}, etlerr.Query(nil, "only a single statement is allowed: %q", query)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	conn, err := r.DB.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		return ResultSet{}, etlerr.Query(err, "acquire connection for %q", query)
	}
	defer conn.Close()

	// the statement runs on its own connection with writes disabled, the
	// prefix check above only filters obvious mistakes
	_, err = conn.ExecContext(ctx, "PRAGMA query_only = ON")
	if err != nil {
		span.RecordError(err)
		return ResultSet{}, etlerr.Query(err, "enable read-only mode for %q", query)
	}
	defer resetQueryOnly(conn)

	result, err := read(ctx, conn, query)
	if err != nil {
		span.RecordError(err)
		return ResultSet{}, err
	}
	span.SetAttributes(attribute.Int("rows", result.RowCount()))
	return result, nil
}

// resetQueryOnly makes the connection writable again before it goes back
// to the pool. A connection that cannot be reset is discarded.
func resetQueryOnly(conn *sql.Conn) {
	_, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
	if err == nil {
		return
	}
	slog.Warn("failed to reset read-only mode, discarding connection", "err", err)
	conn.Raw(func(any) error {
		return driver.ErrBadConn
	})
}

func read(ctx context.Context, conn *sql.Conn, query string) (ResultSet, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return ResultSet{}, etlerr.Query(err, "execute %q", query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, etlerr.Query(err, "read columns of %q", query)
	}

	result := ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		err := rows.Scan(ptrs...)
		if err != nil {
			return ResultSet{}, etlerr.Query(err, "scan row %d of %q", len(result.Rows), query)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	err = rows.Err()
	if err != nil {
		return ResultSet{}, etlerr.Query(err, "iterate %q", query)
	}
	return result, nil
}

// singleStatement reports whether `query` holds one statement. Semicolons
// inside quotes, identifiers and comments are ignored, trailing ones and
// trailing comments are allowed. Unterminated quotes are left to the driver.
func singleStatement(query string) bool {
	ended := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			if ended {
				return false
			}
			closing := c
			if c == '[' {
				closing = ']'
			}
			end := strings.IndexByte(query[i+1:], closing)
			if end < 0 {
				return true
			}
			i += end + 1
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				return true
			}
			i += end
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return true
			}
			i += end + 3
		case c == ';':
			ended = true
		case unicode.IsSpace(rune(c)):
		default:
			if ended {
				return false
			}
		}
	}
	return true
}

func normalizeValue(v any) any {
	switch value := v.(type) {
	case []byte:
		return string(value)
	default:
		return value
	}
}
