package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckmesh/duckchat/internal/session"
)

func TestCreateGetAppend(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Empty(t, created.Turns)

	err = store.AppendTurns(ctx, created.ID,
		session.Turn{Role: session.RoleUser, Content: "How much did I spend?"},
		session.Turn{Role: session.RoleAssistant, Content: "You spent 165.5 EUR."},
	)
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, session.RoleUser, got.Turns[0].Role)
	assert.Equal(t, "You spent 165.5 EUR.", got.Turns[1].Content)
	assert.False(t, got.Turns[0].CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestGetReturnsSnapshot(t *testing.T) {
	store := New()
	ctx := context.Background()
	created, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AppendTurns(ctx, created.ID, session.Turn{Role: session.RoleUser, Content: "q1"}))

	snap, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	snap.Turns[0].Content = "mutated"
	snap.Turns = append(snap.Turns, session.Turn{Role: session.RoleUser, Content: "extra"})

	again, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, again.Turns, 1)
	assert.Equal(t, "q1", again.Turns[0].Content)
}

func TestUnknownSessionsReturnNotFound(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Get(ctx, session.NewID())
	assert.True(t, errors.Is(err, session.ErrNotFound))

	_, err = store.Get(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, session.ErrNotFound))

	err = store.AppendTurns(ctx, session.NewID(), session.Turn{Role: session.RoleUser, Content: "q"})
	assert.True(t, errors.Is(err, session.ErrNotFound))

	err = store.Delete(ctx, session.NewID())
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestAppendRejectsInvalidRoleAtomically(t *testing.T) {
	store := New()
	ctx := context.Background()
	created, err := store.Create(ctx)
	require.NoError(t, err)

	err = store.AppendTurns(ctx, created.ID,
		session.Turn{Role: session.RoleUser, Content: "q"},
		session.Turn{Role: "system", Content: "nope"},
	)
	require.Error(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Turns)
}

func TestDeleteRemovesSession(t *testing.T) {
	store := New()
	ctx := context.Background()
	created, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestSessionsAreIsolated(t *testing.T) {
	store := New()
	ctx := context.Background()
	first, err := store.Create(ctx)
	require.NoError(t, err)
	second, err := store.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.AppendTurns(ctx, first.ID, session.Turn{Role: session.RoleUser, Content: "first"})
		}()
		go func() {
			defer wg.Done()
			_ = store.AppendTurns(ctx, second.ID, session.Turn{Role: session.RoleUser, Content: "second"})
		}()
	}
	wg.Wait()

	for id, want := range map[string]string{first.ID: "first", second.ID: "second"} {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, got.Turns, 20)
		for _, turn := range got.Turns {
			assert.Equal(t, want, turn.Content)
		}
	}
}
