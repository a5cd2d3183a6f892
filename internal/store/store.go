package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert collides with an existing key.
	ErrAlreadyExists = errors.New("already exists")
)

// User is a registered player.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// GameSession is the record of a match handed over to the game.
type GameSession struct {
	ID        string
	PlayerA   string
	PlayerB   string
	CreatedAt time.Time
}

// HasPlayer reports whether username plays in the session.
func (s *GameSession) HasPlayer(username string) bool {
	return s.PlayerA == username || s.PlayerB == username
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// GameSessionStore handles game session persistence.
type GameSessionStore interface {
	// CreateGameSession records a newly formed match.
	CreateGameSession(ctx context.Context, s *GameSession) error

	// GetGameSession retrieves a session by ID.
	GetGameSession(ctx context.Context, id string) (*GameSession, error)

	// ListGameSessions lists the most recent sessions a user played in.
	ListGameSessions(ctx context.Context, username string, limit int) ([]*GameSession, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GameSessionStore

	// Close closes the underlying database connection.
	Close() error
}
