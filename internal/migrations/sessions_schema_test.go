package migrations

import (
	"strings"
	"testing"
)

func TestSessionMigrationContainsRequiredTablesAndIndexes(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000001_sessions.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	sql := string(body)
	requiredSnippets := []string{
		"CREATE TYPE duckchat_turn_role",
		"CREATE TABLE chat_session",
		"CREATE TABLE chat_turn",
		"ON DELETE CASCADE",
		"PRIMARY KEY (session_id, seq)",
		"CREATE INDEX idx_chat_session_updated_at",
	}

	for _, snippet := range requiredSnippets {
		if !strings.Contains(sql, snippet) {
			t.Fatalf("migration missing required snippet: %s", snippet)
		}
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	items, err := loadMigrations(embeddedFS)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) == 0 || items[0].Version != 1 {
		t.Fatalf("unexpected embedded migrations: %+v", items)
	}
}
