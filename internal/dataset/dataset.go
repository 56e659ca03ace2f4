package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ColumnType string

const (
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeText      ColumnType = "text"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Column struct {
	Name string
	Type ColumnType
}

// Dataset is the table questions are answered against. It is built once at
// startup and never mutated afterwards; rows hold int64, float64, bool,
// time.Time, string or nil.
type Dataset struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

func (d *Dataset) ColumnIndex(name string) (int, bool) {
	for i, col := range d.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Field is one entry of the schema descriptor.
type Field struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	Description string `json:"description"`
}

type Schema struct {
	Fields []Field
}

func (s Schema) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

func ValidateName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid dataset name %q: must be a plain identifier", name)
	}
	return nil
}

// TypeFromDeclared maps a dictionary data_type onto a column type.
func TypeFromDeclared(declared string) ColumnType {
	normalized := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexAny(normalized, "( "); i > 0 {
		normalized = normalized[:i]
	}
	switch normalized {
	case "int", "integer", "int32", "int64", "bigint", "smallint", "long":
		return TypeInteger
	case "float", "float32", "float64", "double", "decimal", "numeric", "real", "number":
		return TypeFloat
	case "bool", "boolean":
		return TypeBoolean
	case "date", "datetime", "datetime64", "timestamp", "time":
		return TypeTimestamp
	default:
		return TypeText
	}
}

// FormatValue renders a cell the same way everywhere it is shown to the model.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		utc := typed.UTC()
		if utc.Hour() == 0 && utc.Minute() == 0 && utc.Second() == 0 && utc.Nanosecond() == 0 {
			return utc.Format(time.DateOnly)
		}
		return utc.Format(time.DateTime)
	case []byte:
		return string(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
