package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/spellbound-server/internal/lobby"
	"github.com/vovakirdan/spellbound-server/internal/store"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrNotPlayer is returned when the caller does not play in the session.
	ErrNotPlayer = errors.New("not a player of this session")
)

const defaultListLimit = 20

// Publisher announces formed matches to whoever runs the game.
type Publisher interface {
	PublishMatchFound(ctx context.Context, m *lobby.Match) error
}

// Service is the lobby's game-session handoff: it records every formed match
// so both players can load it after the redirect.
type Service struct {
	store     store.GameSessionStore
	publisher Publisher
	log       *zerolog.Logger
}

// NewService builds the session service. publisher may be nil.
func NewService(st store.GameSessionStore, publisher Publisher, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, publisher: publisher, log: logger}
}

// StartSession implements lobby.SessionStarter.
func (s *Service) StartSession(ctx context.Context, m *lobby.Match) error {
	rec := &store.GameSession{
		ID:        m.SessionID,
		PlayerA:   m.PlayerA,
		PlayerB:   m.PlayerB,
		CreatedAt: m.CreatedAt,
	}
	if err := s.store.CreateGameSession(ctx, rec); err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	if s.publisher != nil {
		// The session is already playable from the store; a lost announcement
		// must not cancel the redirect.
		if err := s.publisher.PublishMatchFound(ctx, m); err != nil {
			s.log.Warn().Err(err).Str("session_id", m.SessionID).Msg("publish match_found failed")
		}
	}

	s.log.Info().
		Str("session_id", m.SessionID).
		Str("player_a", m.PlayerA).
		Str("player_b", m.PlayerB).
		Msg("session started")
	return nil
}

// Get returns the session if identity is one of its players.
func (s *Service) Get(ctx context.Context, id, identity string) (*store.GameSession, error) {
	rec, err := s.store.GetGameSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !rec.HasPlayer(identity) {
		return nil, ErrNotPlayer
	}
	return rec, nil
}

// List returns identity's most recent sessions, newest first.
func (s *Service) List(ctx context.Context, identity string, limit int) ([]*store.GameSession, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	recs, err := s.store.ListGameSessions(ctx, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return recs, nil
}
