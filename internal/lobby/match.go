package lobby

import (
	"context"
	"time"
)

// Match is the outcome of an accepted request: two players leave the lobby
// together for one game session. It is never mutated after creation.
type Match struct {
	SessionID string
	// PlayerA sent the request, PlayerB accepted it.
	PlayerA   string
	PlayerB   string
	CreatedAt time.Time
}

// Players returns both identities, requester first.
func (m *Match) Players() []string {
	return []string{m.PlayerA, m.PlayerB}
}

// SessionStarter receives formed matches. It stands for the game-session
// service, which owns everything after the redirect.
type SessionStarter interface {
	StartSession(ctx context.Context, m *Match) error
}
