package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/duckmesh/duckchat/internal/storage"
)

var dictionaryColumns = []string{"column_name", "data_type", "description"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"2006/01/02",
}

// Source opens the raw files a dataset is built from.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type LocalSource struct{}

func (LocalSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return file, nil
}

// ObjectSource reads dataset files from an object store bucket.
type ObjectSource struct {
	Store storage.ObjectStore
}

func (s ObjectSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	reader, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return reader, nil
}

// Load reads the schema descriptor and the dataset through src.
func Load(ctx context.Context, src Source, name, dataPath, dictionaryPath string) (*Dataset, Schema, error) {
	if err := ValidateName(name); err != nil {
		return nil, Schema{}, err
	}

	dictReader, err := src.Open(ctx, dictionaryPath)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load schema: %w", err)
	}
	schema, err := ReadSchema(dictReader)
	_ = dictReader.Close()
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load schema %q: %w", dictionaryPath, err)
	}

	dataReader, err := src.Open(ctx, dataPath)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load dataset: %w", err)
	}
	ds, schema, err := ReadCSV(dataReader, name, schema)
	_ = dataReader.Close()
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load dataset %q: %w", dataPath, err)
	}
	return ds, schema, nil
}

// ReadSchema parses a column_name,data_type,description metadata table.
func ReadSchema(r io.Reader) (Schema, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Schema{}, fmt.Errorf("schema file is empty")
		}
		return Schema{}, fmt.Errorf("read schema header: %w", err)
	}
	positions, err := headerPositions(header, dictionaryColumns)
	if err != nil {
		return Schema{}, err
	}

	schema := Schema{}
	seen := map[string]struct{}{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Schema{}, fmt.Errorf("read schema line %d: %w", line, err)
		}
		field := Field{
			Name:        strings.TrimSpace(record[positions["column_name"]]),
			DataType:    strings.TrimSpace(record[positions["data_type"]]),
			Description: strings.TrimSpace(record[positions["description"]]),
		}
		if field.Name == "" {
			return Schema{}, fmt.Errorf("schema line %d: column_name is empty", line)
		}
		if _, dup := seen[field.Name]; dup {
			return Schema{}, fmt.Errorf("schema line %d: duplicate column %q", line, field.Name)
		}
		seen[field.Name] = struct{}{}
		schema.Fields = append(schema.Fields, field)
	}
	if len(schema.Fields) == 0 {
		return Schema{}, fmt.Errorf("schema has no columns")
	}
	return schema, nil
}

// ReadCSV parses the dataset file, typing columns from the schema. CSV
// columns missing from the schema are kept as text and appended to the
// returned schema with an empty description.
func ReadCSV(r io.Reader, name string, schema Schema) (*Dataset, Schema, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Schema{}, fmt.Errorf("dataset file is empty")
		}
		return nil, Schema{}, fmt.Errorf("read dataset header: %w", err)
	}
	header = append([]string(nil), header...)
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	present := map[string]struct{}{}
	for _, col := range header {
		if _, dup := present[col]; dup {
			return nil, Schema{}, fmt.Errorf("duplicate dataset column %q", col)
		}
		present[col] = struct{}{}
	}
	for _, field := range schema.Fields {
		if _, ok := present[field.Name]; !ok {
			return nil, Schema{}, fmt.Errorf("schema column %q is missing from dataset", field.Name)
		}
	}

	merged := Schema{Fields: append([]Field(nil), schema.Fields...)}
	ds := &Dataset{Name: name, Columns: make([]Column, len(header))}
	for i, col := range header {
		field, ok := schema.Field(col)
		if !ok {
			field = Field{Name: col, DataType: string(TypeText)}
			merged.Fields = append(merged.Fields, field)
		}
		ds.Columns[i] = Column{Name: col, Type: TypeFromDeclared(field.DataType)}
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Schema{}, fmt.Errorf("read dataset line %d: %w", line, err)
		}
		row := make([]any, len(ds.Columns))
		for i, col := range ds.Columns {
			value, err := parseValue(record[i], col.Type)
			if err != nil {
				return nil, Schema{}, fmt.Errorf("dataset line %d column %q: %w", line, col.Name, err)
			}
			row[i] = value
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, merged, nil
}

func parseValue(raw string, typ ColumnType) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	switch typ {
	case TypeInteger:
		value, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return value, nil
	case TypeFloat:
		value, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return value, nil
	case TypeBoolean:
		switch strings.ToLower(trimmed) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		value, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return value, nil
	case TypeTimestamp:
		return parseTimestamp(trimmed)
	default:
		return raw, nil
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func headerPositions(header, required []string) (map[string]int, error) {
	positions := map[string]int{}
	for i, col := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := positions[col]; !ok {
			return nil, fmt.Errorf("schema file is missing column %q", col)
		}
	}
	return positions, nil
}
