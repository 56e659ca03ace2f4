package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/duckchat/internal/query"
	"github.com/duckmesh/duckchat/internal/snippet"
	"github.com/duckmesh/duckchat/internal/storage"
)

const DefaultRowLimit = 200

var readOnlyKeywords = map[string]struct{}{
	"SELECT": {},
	"WITH":   {},
	"FROM":   {},
	"VALUES": {},
	"TABLE":  {},
}

// Engine runs binding programs. Every call gets its own in-memory database,
// so nothing a program creates outlives the call.
type Engine struct {
	Store   storage.ObjectStore
	TempDir string
}

func NewEngine(store storage.ObjectStore) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (result query.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = query.Result{}
			err = &query.ExecutionError{Kind: query.KindRuntime, Err: fmt.Errorf("engine panic: %v", recovered)}
		}
	}()

	if len(request.Program.Bindings) == 0 {
		return query.Result{}, &query.ExecutionError{Kind: query.KindSyntax, Err: fmt.Errorf("program has no bindings")}
	}
	if len(request.Tables) == 0 {
		return query.Result{}, fmt.Errorf("no dataset tables available")
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}
	if err := checkProgram(request.Program, request.Tables); err != nil {
		return query.Result{}, err
	}

	rowLimit := request.RowLimit
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}

	start := time.Now()
	workDir, err := os.MkdirTemp(e.TempDir, "duckchat-sandbox-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create sandbox temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths, columns, err := e.fetchTables(ctx, workDir, request.Tables)
	if err != nil {
		return query.Result{}, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Temp tables are connection scoped, so every statement must share one
	// connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, tableName := range sortedKeys(groupedPaths) {
		loadSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT %s FROM read_parquet(%s)`, quoteIdent(tableName), selectList(columns[tableName]), quoteStringArray(groupedPaths[tableName]))
		if _, err := conn.ExecContext(ctx, loadSQL); err != nil {
			return query.Result{}, fmt.Errorf("load table %q: %w", tableName, err)
		}
	}
	for _, statement := range []string{
		"SET TimeZone = 'UTC'",
		"SET enable_external_access = false",
		"SET lock_configuration = true",
	} {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return query.Result{}, fmt.Errorf("lock down sandbox: %w", err)
		}
	}

	bound := make([]string, 0, len(request.Program.Bindings))
	for _, binding := range request.Program.Bindings {
		statement := fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s AS %s", quoteIdent(binding.Name), binding.Query)
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return query.Result{}, classifyError(ctx, binding.Name, err)
		}
		bound = appendUnique(bound, binding.Name)
	}

	result = query.Result{Bindings: bound}
	if !request.Program.Binds(snippet.AnswerBinding) {
		result.Duration = time.Since(start)
		return result, query.ErrNoAnswer
	}

	answer, err := readTable(ctx, conn, snippet.AnswerBinding, rowLimit)
	if err != nil {
		return query.Result{}, classifyError(ctx, snippet.AnswerBinding, err)
	}
	result.Answer = answer.value()

	if request.Program.Binds(snippet.ChartBinding) {
		chart, err := readChart(ctx, conn, rowLimit)
		if err != nil {
			if ctx.Err() != nil {
				return query.Result{}, classifyError(ctx, snippet.ChartBinding, err)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("chart dropped: %v", err))
		} else {
			result.Chart = chart
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) fetchTables(ctx context.Context, workDir string, tables []query.TableFile) (map[string][]string, map[string][]string, error) {
	groupedPaths := map[string][]string{}
	columns := map[string][]string{}
	for index, file := range tables {
		reader, err := e.Store.Get(ctx, file.ObjectPath)
		if err != nil {
			return nil, nil, fmt.Errorf("get object %q: %w", file.ObjectPath, err)
		}

		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.TableName), index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return nil, nil, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return nil, nil, fmt.Errorf("close object %q: %w", file.ObjectPath, err)
		}
		groupedPaths[file.TableName] = append(groupedPaths[file.TableName], localPath)
		if len(file.Columns) > 0 {
			columns[file.TableName] = file.Columns
		}
	}
	return groupedPaths, columns, nil
}

// checkProgram rejects statements that are not plain queries and bindings
// that would hide a dataset table.
func checkProgram(program snippet.Program, tables []query.TableFile) error {
	for _, binding := range program.Bindings {
		for _, table := range tables {
			if strings.EqualFold(binding.Name, table.TableName) {
				return &query.ExecutionError{
					Binding: binding.Name,
					Kind:    query.KindForbidden,
					Err:     fmt.Errorf("binding may not replace dataset table %q", table.TableName),
				}
			}
		}
		keyword := leadingKeyword(binding.Query)
		if _, ok := readOnlyKeywords[keyword]; !ok {
			return &query.ExecutionError{
				Binding: binding.Name,
				Kind:    query.KindForbidden,
				Err:     fmt.Errorf("only read-only queries are allowed, got %q", keyword),
			}
		}
	}
	return nil
}

func leadingKeyword(sqlText string) string {
	trimmed := strings.TrimLeft(sqlText, "( \t\r\n")
	end := strings.IndexFunc(trimmed, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	})
	if end < 0 {
		end = len(trimmed)
	}
	return strings.ToUpper(trimmed[:end])
}

func classifyError(ctx context.Context, binding string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &query.ExecutionError{Binding: binding, Kind: query.KindTimeout, Err: fmt.Errorf("execution exceeded its time limit")}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	message := err.Error()
	kind := query.KindRuntime
	switch {
	case strings.Contains(message, "Catalog Error"), strings.Contains(message, "Binder Error"):
		kind = query.KindReference
	case strings.Contains(message, "Parser Error"), strings.Contains(message, "Syntax Error"):
		kind = query.KindSyntax
	case strings.Contains(message, "Permission Error"):
		kind = query.KindForbidden
	case strings.Contains(message, "INTERRUPT"), strings.Contains(message, "Interrupt"):
		kind = query.KindTimeout
	}
	return &query.ExecutionError{Binding: binding, Kind: kind, Err: err}
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func selectList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, 0, len(columns))
	for _, column := range columns {
		quoted = append(quoted, quoteIdent(column))
	}
	return strings.Join(quoted, ", ")
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
