package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/query"
	"github.com/duckmesh/duckchat/internal/snippet"
)

type boundTable struct {
	columns []string
	types   []string
	rows    [][]any
	total   int64
}

func (t boundTable) value() query.Value {
	if t.total == 1 && len(t.columns) == 1 && len(t.rows) == 1 {
		return query.Value{Kind: query.ValueScalar, Scalar: t.rows[0][0]}
	}
	return query.Value{
		Kind:      query.ValueTable,
		Columns:   t.columns,
		Rows:      t.rows,
		Truncated: t.total > int64(len(t.rows)),
	}
}

func readTable(ctx context.Context, conn *sql.Conn, name string, limit int) (boundTable, error) {
	var total int64
	if err := conn.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(name))).Scan(&total); err != nil {
		return boundTable{}, fmt.Errorf("count %s: %w", name, err)
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(name), limit))
	if err != nil {
		return boundTable{}, fmt.Errorf("read %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return boundTable{}, fmt.Errorf("query columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return boundTable{}, fmt.Errorf("query column types: %w", err)
	}
	types := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		types[i] = columnType.DatabaseTypeName()
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return boundTable{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return boundTable{}, fmt.Errorf("iterate rows: %w", err)
	}
	return boundTable{columns: columns, types: types, rows: resultRows, total: total}, nil
}

// readChart turns the chart binding into labels and numeric series. The first
// column labels the x axis; every other column must be numeric.
func readChart(ctx context.Context, conn *sql.Conn, limit int) (*query.Chart, error) {
	table, err := readTable(ctx, conn, snippet.ChartBinding, limit)
	if err != nil {
		return nil, err
	}
	if len(table.columns) < 2 {
		return nil, fmt.Errorf("%s needs at least two columns, got %d", snippet.ChartBinding, len(table.columns))
	}

	chart := &query.Chart{
		Kind:   query.ChartBar,
		XLabel: table.columns[0],
		Labels: make([]string, 0, len(table.rows)),
		Series: make([]query.Series, len(table.columns)-1),
	}
	if isTemporal(table.types[0], table.rows) {
		chart.Kind = query.ChartLine
	}
	for i := range chart.Series {
		chart.Series[i] = query.Series{Name: table.columns[i+1], Values: make([]*float64, 0, len(table.rows))}
	}

	for _, row := range table.rows {
		chart.Labels = append(chart.Labels, dataset.FormatValue(row[0]))
		for i := range chart.Series {
			cell := row[i+1]
			if cell == nil {
				chart.Series[i].Values = append(chart.Series[i].Values, nil)
				continue
			}
			number, ok := toFloat(cell)
			if !ok {
				return nil, fmt.Errorf("%s column %q is not numeric", snippet.ChartBinding, table.columns[i+1])
			}
			chart.Series[i].Values = append(chart.Series[i].Values, &number)
		}
	}
	return chart, nil
}

func isTemporal(databaseType string, rows [][]any) bool {
	upper := strings.ToUpper(databaseType)
	if strings.Contains(upper, "DATE") || strings.Contains(upper, "TIME") {
		return true
	}
	for _, row := range rows {
		if row[0] == nil {
			continue
		}
		_, ok := row[0].(time.Time)
		return ok
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		normalized[i] = normalizeValue(value)
	}
	return normalized
}

// normalizeValue narrows driver types to the small set the rest of the
// service handles: int64, float64, bool, string, time.Time and nil.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case int:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		if typed <= math.MaxInt64 {
			return int64(typed)
		}
		return float64(typed)
	case float32:
		return float64(typed)
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case interface{ Float64() float64 }:
		return typed.Float64()
	default:
		return typed
	}
}
