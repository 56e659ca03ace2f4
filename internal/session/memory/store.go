// Package memory keeps sessions in process memory. Sessions are lost on
// restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/duckmesh/duckchat/internal/session"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: map[string]*session.Session{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context) (session.Session, error) {
	now := s.now()
	created := &session.Session{
		ID:        session.NewID(),
		Turns:     []session.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[created.ID] = created
	s.mu.Unlock()
	return snapshot(created), nil
}

func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return session.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.sessions[normalized]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return snapshot(current), nil
}

func (s *Store) AppendTurns(_ context.Context, id string, turns ...session.Turn) error {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		if err := session.ValidateTurn(turn); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[normalized]
	if !ok {
		return session.ErrNotFound
	}
	now := s.now()
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		current.Turns = append(current.Turns, turn)
	}
	current.UpdatedAt = now
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	normalized, err := session.NormalizeID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[normalized]; !ok {
		return session.ErrNotFound
	}
	delete(s.sessions, normalized)
	return nil
}

func (s *Store) HealthCheck(context.Context) error {
	return nil
}

func snapshot(current *session.Session) session.Session {
	copied := *current
	copied.Turns = append([]session.Turn(nil), current.Turns...)
	return copied
}
