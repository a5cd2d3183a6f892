package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/spellbound-server/internal/lobby"
)

// LobbyHandlers exposes read-only views of the lobby.
type LobbyHandlers struct {
	hub *lobby.Hub
}

// NewLobbyHandlers creates lobby handlers.
func NewLobbyHandlers(hub *lobby.Hub) *LobbyHandlers {
	return &LobbyHandlers{hub: hub}
}

// LobbyResponse is the caller's view of the lobby.
type LobbyResponse struct {
	Stats      lobby.Stats `json:"stats"`
	ReadyUsers []string    `json:"ready_users"`
	Requestees []string    `json:"requestees"`
	Requesters []string    `json:"requesters"`
}

// Get returns lobby counters plus the ready list and the caller's requests.
// GET /api/lobby
func (h *LobbyHandlers) Get(c *gin.Context) {
	reqs := h.hub.Requests(currentUsername(c))
	c.JSON(http.StatusOK, LobbyResponse{
		Stats:      h.hub.Stats(),
		ReadyUsers: h.hub.ReadyUsers(),
		Requestees: reqs.Outgoing,
		Requesters: reqs.Incoming,
	})
}
