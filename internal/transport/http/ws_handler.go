package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/spellbound-server/internal/config"
	"github.com/vovakirdan/spellbound-server/internal/lobby"
	"github.com/vovakirdan/spellbound-server/internal/proto"
)

// errLobbyReleased is returned by the write loop once the hub let go of the client.
var errLobbyReleased = errors.New("released by lobby")

// Authenticator resolves a bearer token to a lobby identity.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// WSHandler upgrades authenticated HTTP connections and bridges them to lobby.Client.
type WSHandler struct {
	hub  *lobby.Hub
	auth Authenticator
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *lobby.Hub, authenticator Authenticator, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authenticator, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Identity is settled before the upgrade; an unauthenticated socket never
	// reaches the lobby.
	identity, err := h.auth.Authenticate(requestToken(r))
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("lobby connection unauthorized")
		writeJSONError(w, stdhttp.StatusUnauthorized, "unauthorized")
		return
	}
	ready, _ := strconv.ParseBool(r.URL.Query().Get("ready"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := lobby.NewClient(uuid.NewString(), identity, h.cfg.EventBuffer)
	logger := h.log.With().Str("identity", identity).Str("client_id", client.ID).Logger()
	logger.Info().Bool("ready", ready).Msg("lobby client connected")

	h.hub.Register(client, ready)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	status, reason := closeStatus(client, err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		logger.Info().Err(err).Int("status", int(status)).Str("reason", reason).Msg("closing lobby connection")
	}
	conn.Close(status, reason)
	cancel()
	<-errCh

	logger.Info().Msg("lobby client disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *lobby.Client, logger *zerolog.Logger) error {
	limiter := newInboundLimiter(h.cfg.RateLimitPerSecond, h.cfg.RateBurst)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if err := h.handleInbound(ctx, conn, client, limiter, inbound); err != nil {
			logger.Warn().Err(err).Msg("write ws error frame")
			return err
		}
	}
}

// handleInbound applies one client frame. Only transport failures are returned;
// rejected commands are answered with an error frame.
func (h *WSHandler) handleInbound(ctx context.Context, conn *websocket.Conn, client *lobby.Client, limiter *rate.Limiter, inbound proto.Inbound) error {
	if !allow(limiter) {
		return wsjson.Write(ctx, conn, errorFrame(&proto.Error{Code: lobby.ErrCodeRateLimited, Msg: "too many messages"}))
	}

	cmd, protoErr := inboundToCommand(inbound)
	if protoErr != nil {
		return wsjson.Write(ctx, conn, errorFrame(protoErr))
	}

	err := h.hub.Dispatch(ctx, client, cmd)
	if errors.Is(err, lobby.ErrSessionUnavailable) {
		// Both players were already told through their event streams.
		return nil
	}
	if coreErr := lobby.AsCoreError(err); coreErr != nil {
		return wsjson.Write(ctx, conn, errorFrame(&proto.Error{Code: coreErr.Code, Msg: coreErr.Message}))
	}
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *lobby.Client, logger *zerolog.Logger) error {
	write := func(event *lobby.Event) error {
		if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
			logger.Error().Err(err).Str("event", event.Kind.String()).Msg("write ws event")
			return err
		}
		return nil
	}

	for {
		select {
		case event := <-client.Events:
			if err := write(event); err != nil {
				return err
			}
		case <-client.Done():
			// The hub stopped feeding this client; flush what it queued last
			// (a redirect, typically) before the socket goes away.
			for {
				select {
				case event := <-client.Events:
					if err := write(event); err != nil {
						return err
					}
				default:
					return errLobbyReleased
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// closeStatus picks the close frame for a finished connection.
func closeStatus(client *lobby.Client, err error) (websocket.StatusCode, string) {
	select {
	case <-client.Done():
		switch client.Reason() {
		case lobby.CloseReplaced:
			return websocket.StatusPolicyViolation, client.Reason().String()
		case lobby.CloseSlowConsumer:
			return websocket.StatusTryAgainLater, client.Reason().String()
		default:
			return websocket.StatusNormalClosure, client.Reason().String()
		}
	default:
	}

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, "closing"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case -1:
		return websocket.StatusInternalError, "internal error"
	default:
		return s, "closing"
	}
}

// requestToken reads the token from the query string, which browsers can set
// on a websocket URL, falling back to an Authorization header.
func requestToken(r *stdhttp.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

func writeJSONError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
