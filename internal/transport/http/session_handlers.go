package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/spellbound-server/internal/session"
	"github.com/vovakirdan/spellbound-server/internal/store"
)

// SessionHandlers let matched players load their game sessions.
type SessionHandlers struct {
	sessions *session.Service
	log      *zerolog.Logger
}

// NewSessionHandlers creates session handlers.
func NewSessionHandlers(sessions *session.Service, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, log: logger}
}

// SessionResponse describes one game session.
type SessionResponse struct {
	ID        string    `json:"id"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(gs *store.GameSession) SessionResponse {
	return SessionResponse{
		ID:        gs.ID,
		Players:   []string{gs.PlayerA, gs.PlayerB},
		CreatedAt: gs.CreatedAt,
	}
}

// Get returns a session the caller plays in.
// GET /api/sessions/:id
func (h *SessionHandlers) Get(c *gin.Context) {
	gs, err := h.sessions.Get(c.Request.Context(), c.Param("id"), currentUsername(c))
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	case errors.Is(err, session.ErrNotPlayer):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a player of this session"})
		return
	case err != nil:
		h.log.Error().Err(err).Str("session_id", c.Param("id")).Msg("failed to load session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(gs))
}

// List returns the caller's recent sessions.
// GET /api/sessions?limit=N
func (h *SessionHandlers) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	recs, err := h.sessions.List(c.Request.Context(), currentUsername(c), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]SessionResponse, 0, len(recs))
	for _, gs := range recs {
		out = append(out, toSessionResponse(gs))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
