package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/spellbound-server/internal/auth"
)

// APIHandlers issue the tokens players present when entering the lobby.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates account handlers.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// Credentials is the body of both register and login. Username rules beyond
// length are enforced by the auth service.
type Credentials struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,max=72"`
}

// AuthResponse carries a lobby token and the identity it stands for.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// authStatus maps account errors to HTTP statuses; anything else is a 500.
var authStatus = []struct {
	err    error
	status int
	msg    string
}{
	{auth.ErrUserExists, http.StatusConflict, "username already taken"},
	{auth.ErrInvalidUsername, http.StatusBadRequest, "username must be 3-32 letters, digits, '_', '-' or '.'"},
	{auth.ErrInvalidPassword, http.StatusBadRequest, "password must be 6-72 bytes"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
}

// Register creates a player account and signs it in.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	h.issue(c, "register", http.StatusCreated, h.authService.Register)
}

// Login signs in an existing player.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	h.issue(c, "login", http.StatusOK, h.authService.Login)
}

type tokenIssuer func(ctx context.Context, username, password string) (string, error)

func (h *APIHandlers) issue(c *gin.Context, action string, okStatus int, issueToken tokenIssuer) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		h.log.Debug().Err(err).Str("action", action).Msg("rejected account request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}
	identity := strings.TrimSpace(creds.Username)

	token, err := issueToken(c.Request.Context(), identity, creds.Password)
	if err != nil {
		for _, m := range authStatus {
			if errors.Is(err, m.err) {
				h.log.Debug().Str("identity", identity).Str("action", action).Msg(m.msg)
				c.JSON(m.status, ErrorResponse{Error: m.msg})
				return
			}
		}
		h.log.Error().Err(err).Str("identity", identity).Str("action", action).Msg("account request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("identity", identity).Str("action", action).Msg("lobby token issued")
	c.JSON(okStatus, AuthResponse{Token: token, Username: identity})
}
