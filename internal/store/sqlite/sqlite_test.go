package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/spellbound-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "hash", created.PasswordHash)

	_, err = s.CreateUser(ctx, "alice", "other")
	require.ErrorIs(t, err, store.ErrAlreadyExists, "usernames are unique")

	_, err = s.GetUserByUsername(ctx, "bob")
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestGameSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sessions := []*store.GameSession{
		{ID: "s1", PlayerA: "alice", PlayerB: "bob", CreatedAt: base},
		{ID: "s2", PlayerA: "carol", PlayerB: "alice", CreatedAt: base.Add(time.Minute)},
		{ID: "s3", PlayerA: "bob", PlayerB: "carol", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, gs := range sessions {
		require.NoError(t, s.CreateGameSession(ctx, gs))
	}

	got, err := s.GetGameSession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "carol", got.PlayerA)
	assert.True(t, got.HasPlayer("alice"))
	assert.False(t, got.HasPlayer("bob"))
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	_, err = s.GetGameSession(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.Error(t, s.CreateGameSession(ctx, sessions[0]), "session ids are unique")

	tests := []struct {
		name     string
		username string
		limit    int
		expected []string
	}{
		{name: "newest first", username: "alice", limit: 10, expected: []string{"s2", "s1"}},
		{name: "limited", username: "carol", limit: 1, expected: []string{"s3"}},
		{name: "unknown user", username: "dave", limit: 10, expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListGameSessions(ctx, tt.username, tt.limit)
			require.NoError(t, err)

			ids := make([]string, 0, len(list))
			for _, gs := range list {
				ids = append(ids, gs.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Migrate(s.db))
}

func TestDuplicateGameSessionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gs := &store.GameSession{ID: "s1", PlayerA: "alice", PlayerB: "bob", CreatedAt: time.Now()}
	require.NoError(t, s.CreateGameSession(ctx, gs))
	require.ErrorIs(t, s.CreateGameSession(ctx, gs), store.ErrAlreadyExists)
}
