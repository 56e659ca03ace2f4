package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

const DefaultSampleRows = 2

// Context is the dataset description embedded in every snippet prompt.
type Context struct {
	SampleRows string
	SchemaText string
}

// BuildContext renders the first sampleRows rows and the schema lines. A
// negative sampleRows falls back to DefaultSampleRows.
func BuildContext(ds *Dataset, schema Schema, sampleRows int) Context {
	if sampleRows < 0 {
		sampleRows = DefaultSampleRows
	}
	return Context{
		SampleRows: FormatTable(columnNames(ds.Columns), ds.Rows, sampleRows),
		SchemaText: SchemaText(schema),
	}
}

func SchemaText(schema Schema) string {
	lines := make([]string, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		line := fmt.Sprintf("- %s: %s.", field.Name, field.DataType)
		if description := strings.TrimSpace(field.Description); description != "" {
			line += " " + description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatTable renders at most limit rows under a header as whitespace aligned
// text. A limit of zero renders the header only.
func FormatTable(columns []string, rows [][]any, limit int) string {
	if limit > len(rows) || limit < 0 {
		limit = len(rows)
	}

	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, strings.Join(columns, "\t"))
	for _, row := range rows[:limit] {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = strings.ReplaceAll(FormatValue(value), "\t", " ")
		}
		_, _ = fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	_ = writer.Flush()
	return strings.TrimRight(trimLineEnds(buf.String()), "\n")
}

func trimLineEnds(text string) string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines, "\n")
}

func columnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return names
}
