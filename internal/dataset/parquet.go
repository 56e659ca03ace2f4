package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

// EncodeParquet writes the dataset as a single parquet file and returns it
// together with the hex sha256 of the encoded bytes. Parquet orders the fields
// by name; Snapshot.Columns keeps the dataset order for readers.
func EncodeParquet(ds *Dataset) ([]byte, string, error) {
	if ds == nil {
		return nil, "", fmt.Errorf("dataset is required")
	}
	if len(ds.Columns) == 0 {
		return nil, "", fmt.Errorf("dataset %q has no columns", ds.Name)
	}

	group := parquet.Group{}
	for _, col := range ds.Columns {
		group[col.Name] = parquet.Optional(parquetNode(col.Type))
	}
	schema := parquet.NewSchema(ds.Name, group)

	// Group fields are ordered by name, so leaf indexes follow schema order
	// rather than dataset column order.
	fields := schema.Fields()
	sources := make([]int, len(fields))
	types := make([]ColumnType, len(fields))
	for leaf, field := range fields {
		idx, ok := ds.ColumnIndex(field.Name())
		if !ok {
			return nil, "", fmt.Errorf("parquet field %q has no dataset column", field.Name())
		}
		sources[leaf] = idx
		types[leaf] = ds.Columns[idx].Type
	}

	rows := make([]parquet.Row, 0, len(ds.Rows))
	for rowIdx, values := range ds.Rows {
		row := make(parquet.Row, len(fields))
		for leaf := range fields {
			value, err := parquetValue(values[sources[leaf]], types[leaf])
			if err != nil {
				return nil, "", fmt.Errorf("encode row %d column %q: %w", rowIdx, fields[leaf].Name(), err)
			}
			if value.IsNull() {
				row[leaf] = value.Level(0, 0, leaf)
				continue
			}
			row[leaf] = value.Level(0, 1, leaf)
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	writer := parquet.NewWriter(&buf, schema)
	if len(rows) > 0 {
		if _, err := writer.WriteRows(rows); err != nil {
			return nil, "", fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close parquet writer: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

func parquetNode(typ ColumnType) parquet.Node {
	switch typ {
	case TypeInteger:
		return parquet.Int(64)
	case TypeFloat:
		return parquet.Leaf(parquet.DoubleType)
	case TypeBoolean:
		return parquet.Leaf(parquet.BooleanType)
	case TypeTimestamp:
		// Values are UTC wall clock times. Marking them as not adjusted makes
		// readers load a plain TIMESTAMP that never shifts with a session zone.
		return parquet.TimestampAdjusted(parquet.Microsecond, false)
	default:
		return parquet.String()
	}
}

func parquetValue(value any, typ ColumnType) (parquet.Value, error) {
	if value == nil {
		return parquet.NullValue(), nil
	}
	switch typ {
	case TypeInteger:
		if typed, ok := value.(int64); ok {
			return parquet.Int64Value(typed), nil
		}
	case TypeFloat:
		if typed, ok := value.(float64); ok {
			return parquet.DoubleValue(typed), nil
		}
	case TypeBoolean:
		if typed, ok := value.(bool); ok {
			return parquet.BooleanValue(typed), nil
		}
	case TypeTimestamp:
		if typed, ok := value.(time.Time); ok {
			return parquet.Int64Value(typed.UTC().UnixMicro()), nil
		}
	default:
		if typed, ok := value.(string); ok {
			return parquet.ByteArrayValue([]byte(typed)), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("value %v (%T) does not match column type %s", value, value, typ)
}
