package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/spellbound-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies pending migrations.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without touching disk.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== GameSessionStore implementation ====

// CreateGameSession records a newly formed match.
func (s *SQLiteStore) CreateGameSession(ctx context.Context, gs *store.GameSession) error {
	query := `
		INSERT INTO game_sessions (id, player_a, player_b, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, gs.ID, gs.PlayerA, gs.PlayerB, gs.CreatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("game session %q: %w", gs.ID, store.ErrAlreadyExists)
		}
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

// GetGameSession retrieves a session by ID.
func (s *SQLiteStore) GetGameSession(ctx context.Context, id string) (*store.GameSession, error) {
	query := `
		SELECT id, player_a, player_b, created_at
		FROM game_sessions
		WHERE id = ?
	`
	var gs store.GameSession
	err := s.db.QueryRowContext(ctx, query, id).Scan(&gs.ID, &gs.PlayerA, &gs.PlayerB, &gs.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game session %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query game session: %w", err)
	}
	return &gs, nil
}

// ListGameSessions lists the most recent sessions a user played in, newest first.
func (s *SQLiteStore) ListGameSessions(ctx context.Context, username string, limit int) ([]*store.GameSession, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, player_a, player_b, created_at
		FROM game_sessions
		WHERE player_a = ? OR player_b = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, username, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query game sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*store.GameSession, 0)
	for rows.Next() {
		var gs store.GameSession
		if err := rows.Scan(&gs.ID, &gs.PlayerA, &gs.PlayerB, &gs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan game session: %w", err)
		}
		sessions = append(sessions, &gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game sessions: %w", err)
	}
	return sessions, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
