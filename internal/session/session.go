// Package session holds the conversation log of each chat session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a snapshot of one conversation. Turns are in the order they were
// appended; the log is never rewritten.
type Session struct {
	ID        string    `json:"session_id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions. Get returns a copy the caller may keep; AppendTurns
// appends all turns or none.
type Store interface {
	Create(ctx context.Context) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	AppendTurns(ctx context.Context, id string, turns ...Turn) error
	Delete(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
}

func NewID() string {
	return uuid.NewString()
}

// NormalizeID returns the canonical form of a session id. Anything that is not
// a UUID cannot name a session, so it maps to ErrNotFound.
func NormalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return parsed.String(), nil
}

func ValidateTurn(turn Turn) error {
	switch turn.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid turn role %q", turn.Role)
	}
	return nil
}

// Recent returns at most limit of the latest turns. A limit of zero or less
// returns every turn.
func Recent(turns []Turn, limit int) []Turn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
