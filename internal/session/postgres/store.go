// Package postgres stores sessions in the chat_session and chat_turn tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/duckmesh/duckchat/internal/session"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping session db: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context) (session.Session, error) {
	query := `
INSERT INTO chat_session (session_id)
VALUES ($1)
RETURNING created_at, updated_at`

	created := session.Session{ID: session.NewID(), Turns: []session.Turn{}}
	if err := s.db.QueryRowContext(ctx, query, created.ID).Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return session.Session{}, err
	}

	current := session.Session{ID: normalized}
	if err := s.db.QueryRowContext(ctx, `
SELECT created_at, updated_at
FROM chat_session
WHERE session_id = $1`, normalized).Scan(&current.CreatedAt, &current.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT role, content, created_at
FROM chat_turn
WHERE session_id = $1
ORDER BY seq ASC`, normalized)
	if err != nil {
		return session.Session{}, fmt.Errorf("list session turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current.Turns = make([]session.Turn, 0)
	for rows.Next() {
		var (
			turn session.Turn
			role string
		)
		if err := rows.Scan(&role, &turn.Content, &turn.CreatedAt); err != nil {
			return session.Session{}, fmt.Errorf("scan session turn: %w", err)
		}
		turn.Role = session.Role(role)
		current.Turns = append(current.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, fmt.Errorf("iterate session turns: %w", err)
	}
	return current, nil
}

// AppendTurns locks the session row while it assigns sequence numbers, so
// concurrent appends to one session serialize.
func (s *Store) AppendTurns(ctx context.Context, id string, turns ...session.Turn) error {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		if err := session.ValidateTurn(turn); err != nil {
			return err
		}
	}
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	result, err := tx.ExecContext(ctx, `
UPDATE chat_session
SET updated_at = $2
WHERE session_id = $1`, normalized, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session rows affected: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}

	var lastSeq int64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0)
FROM chat_turn
WHERE session_id = $1`, normalized).Scan(&lastSeq); err != nil {
		return fmt.Errorf("read last turn sequence: %w", err)
	}

	for i, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_turn (session_id, seq, role, content, created_at)
VALUES ($1, $2, $3::duckchat_turn_role, $4, $5)`,
			normalized, lastSeq+int64(i)+1, string(turn.Role), turn.Content, createdAt); err != nil {
			return fmt.Errorf("insert session turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
DELETE FROM chat_session
WHERE session_id = $1`, normalized)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}
