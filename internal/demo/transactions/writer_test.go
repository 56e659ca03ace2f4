package transactions

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/storage/memory"
)

func TestWriteProducesLoadableDataset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows = 120
	dir := t.TempDir()

	summary, err := Write(context.Background(), cfg, nil, DirSink{Dir: dir})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if summary.Rows != 120 || len(summary.Locations) != 2 {
		t.Fatalf("summary = %#v", summary)
	}

	ds, schema, err := dataset.Load(context.Background(), dataset.LocalSource{}, "transactions",
		filepath.Join(dir, cfg.DataFile), filepath.Join(dir, cfg.DictionaryFile))
	if err != nil {
		t.Fatalf("dataset.Load() error = %v", err)
	}
	if ds.RowCount() != 120 {
		t.Fatalf("RowCount() = %d", ds.RowCount())
	}
	if len(schema.Fields) != len(Columns) {
		t.Fatalf("schema fields = %d", len(schema.Fields))
	}
	wantTypes := map[string]dataset.ColumnType{
		"transaction_id": dataset.TypeInteger,
		"date":           dataset.TypeTimestamp,
		"amount":         dataset.TypeFloat,
		"is_recurring":   dataset.TypeBoolean,
		"category":       dataset.TypeText,
	}
	for _, column := range ds.Columns {
		if want, ok := wantTypes[column.Name]; ok && column.Type != want {
			t.Fatalf("column %s type = %v, want %v", column.Name, column.Type, want)
		}
	}
}

func TestWriteUploadsToObjectStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows = 10
	store := memory.New()

	summary, err := Write(context.Background(), cfg, nil, ObjectSink{Store: store, Prefix: "demo"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if summary.Locations[0] != "demo/transactions.csv" || summary.Locations[1] != "demo/data_dict.csv" {
		t.Fatalf("locations = %#v", summary.Locations)
	}

	ds, _, err := dataset.Load(context.Background(), dataset.ObjectSource{Store: store}, "transactions", "demo/transactions.csv", "demo/data_dict.csv")
	if err != nil {
		t.Fatalf("dataset.Load() error = %v", err)
	}
	if ds.RowCount() != 10 {
		t.Fatalf("RowCount() = %d", ds.RowCount())
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	first, err := EncodeTransactions(NewGenerator(3, DefaultConfig().StartDate, 2), 40)
	if err != nil {
		t.Fatalf("EncodeTransactions() error = %v", err)
	}
	second, err := EncodeTransactions(NewGenerator(3, DefaultConfig().StartDate, 2), 40)
	if err != nil {
		t.Fatalf("EncodeTransactions() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same seed produced different files")
	}
}

func TestWriteRequiresSink(t *testing.T) {
	if _, err := Write(context.Background(), DefaultConfig(), nil); err == nil {
		t.Fatal("expected error without sinks")
	}
}
