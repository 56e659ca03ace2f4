package migrations

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/000002_turn_index.up.sql":   {Data: []byte("CREATE INDEX two;")},
		"sql/000002_turn_index.down.sql": {Data: []byte("DROP INDEX two;")},
		"sql/000001_sessions.up.sql":     {Data: []byte("CREATE TABLE one;")},
		"sql/000001_sessions.down.sql":   {Data: []byte("DROP TABLE one;")},
	}
}

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	items, err := loadMigrations(testFS())
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[0].Name != "sessions" || items[1].Version != 2 || items[1].Name != "turn_index" {
		t.Fatalf("unexpected migration order: %+v", items)
	}
	if items[1].DownSQL != "DROP INDEX two;" {
		t.Fatalf("down SQL = %q", items[1].DownSQL)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsRejectsConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_two.down.sql": {Data: []byte("SELECT -1;")},
	}
	if _, err := loadMigrations(fsys); err == nil || !strings.Contains(err.Error(), "conflicting names") {
		t.Fatalf("loadMigrations() error = %v", err)
	}
}

func TestUpSkipsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS duckchat_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM duckchat_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX two;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO duckchat_schema_migrations").
		WithArgs(int64(2), "turn_index").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := &Runner{fsys: testFS()}
	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS duckchat_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM duckchat_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), now).AddRow(int64(2), now))
	mock.ExpectBegin()
	mock.ExpectExec("DROP INDEX two;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM duckchat_schema_migrations").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := &Runner{fsys: testFS()}
	rolledBack, err := runner.Down(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("rolledBack = %d", rolledBack)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusReportsPendingMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	appliedAt := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS duckchat_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM duckchat_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), appliedAt))

	runner := &Runner{fsys: testFS()}
	statuses, err := runner.Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %#v", statuses)
	}
	if !statuses[0].Applied || !statuses[0].AppliedAt.Equal(appliedAt) || statuses[0].Name != "sessions" {
		t.Fatalf("first status = %#v", statuses[0])
	}
	if statuses[1].Applied || !statuses[1].AppliedAt.IsZero() {
		t.Fatalf("second status = %#v", statuses[1])
	}
}
