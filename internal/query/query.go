// Package query defines the contract between the turn handler and the
// sandbox that executes binding programs.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/duckmesh/duckchat/internal/snippet"
)

// ErrNoAnswer is returned when a program runs to completion without binding
// snippet.AnswerBinding.
var ErrNoAnswer = errors.New("snippet did not bind " + snippet.AnswerBinding)

type TableFile struct {
	TableName     string
	ObjectPath    string
	FileSizeBytes int64
	// Columns fixes the column order of the loaded table. Empty keeps the
	// file's own order.
	Columns       []string
}

type Request struct {
	Program  snippet.Program
	Tables   []TableFile
	RowLimit int
	Timeout  time.Duration
}

type ValueKind string

const (
	ValueScalar ValueKind = "scalar"
	ValueTable  ValueKind = "table"
)

// Value is the content of a binding. Scalar holds the single cell of a 1x1
// result; otherwise Columns and Rows hold the table, cut at the row limit.
type Value struct {
	Kind      ValueKind `json:"kind"`
	Scalar    any       `json:"scalar,omitempty"`
	Columns   []string  `json:"columns,omitempty"`
	Rows      [][]any   `json:"rows,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
}

type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

type Series struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

type Chart struct {
	Kind   ChartKind `json:"kind"`
	XLabel string    `json:"x_label"`
	Labels []string  `json:"labels"`
	Series []Series  `json:"series"`
}

type Result struct {
	Answer   Value
	Chart    *Chart
	Bindings []string
	Warnings []string
	Duration time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

type ErrorKind string

const (
	KindReference ErrorKind = "reference"
	KindSyntax    ErrorKind = "syntax"
	KindForbidden ErrorKind = "forbidden"
	KindTimeout   ErrorKind = "timeout"
	KindRuntime   ErrorKind = "runtime"
)

// ExecutionError is a failure of the snippet itself rather than of the
// service. Binding names the statement that failed, when known.
type ExecutionError struct {
	Binding string
	Kind    ErrorKind
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Binding == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error in binding %s: %v", e.Kind, e.Binding, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FromSyntaxError converts a parse failure into an ExecutionError so callers
// handle both the same way.
func FromSyntaxError(err error) error {
	var syntaxErr *snippet.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ExecutionError{Binding: syntaxErr.Binding, Kind: KindSyntax, Err: err}
	}
	return err
}
