package transactions

import (
	"reflect"
	"testing"
	"time"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g1 := NewGenerator(42, start, 3)
	g2 := NewGenerator(42, start, 3)

	for i := 0; i < 50; i++ {
		r1 := g1.Next()
		r2 := g2.Next()
		if !reflect.DeepEqual(r1, r2) {
			t.Fatalf("record %d differs: %#v vs %#v", i, r1, r2)
		}
	}
}

func TestGeneratorIDsAndDatesIncrease(t *testing.T) {
	g := NewGenerator(7, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 2)

	var last Transaction
	sawRecurring := false
	for i := 1; i <= 200; i++ {
		record := g.Next()
		if record.ID != int64(i) {
			t.Fatalf("ID = %d, want %d", record.ID, i)
		}
		if record.Date.Before(last.Date) {
			t.Fatalf("date went backwards: %s after %s", record.Date, last.Date)
		}
		if record.Amount <= 0 {
			t.Fatalf("amount = %f", record.Amount)
		}
		if record.Recurring {
			sawRecurring = true
		}
		if len(record.Record()) != len(Columns) {
			t.Fatalf("record width = %d", len(record.Record()))
		}
		last = record
	}
	if !sawRecurring {
		t.Fatal("expected monthly recurring payments")
	}
}

func TestDictionaryCoversColumns(t *testing.T) {
	if len(Dictionary) != len(Columns) {
		t.Fatalf("dictionary rows = %d, columns = %d", len(Dictionary), len(Columns))
	}
	for i, row := range Dictionary {
		if row[0] != Columns[i] {
			t.Fatalf("dictionary row %d = %q, want %q", i, row[0], Columns[i])
		}
	}
}
