package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/spellbound-server/internal/auth"
	"github.com/vovakirdan/spellbound-server/internal/config"
	"github.com/vovakirdan/spellbound-server/internal/lobby"
	"github.com/vovakirdan/spellbound-server/internal/proto"
	"github.com/vovakirdan/spellbound-server/internal/session"
	"github.com/vovakirdan/spellbound-server/internal/store/sqlite"
)

type testEnv struct {
	ts   *httptest.Server
	hub  *lobby.Hub
	auth *auth.Service
}

func startTestServer(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.StrictInvariants = true
	if tweak != nil {
		tweak(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
	sessions := session.NewService(st, nil, &logger)
	hub := lobby.NewHub(sessions, lobby.Options{
		SessionURLPrefix: cfg.SessionURLPrefix,
		Strict:           cfg.StrictInvariants,
	}, &logger)

	server := NewServer(hub, authService, sessions, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService}
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	token, err := e.auth.Register(context.Background(), username, "password123")
	require.NoError(t, err)
	return token
}

func (e *testEnv) lobbyURL(token string, ready bool) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws/lobby?token=" + token
	if ready {
		u += "&ready=true"
	}
	return u
}

// dial connects and waits for the initial readiness snapshot, which proves
// the presence is registered.
func (e *testEnv) dial(ctx context.Context, t *testing.T, token string, ready bool) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.lobbyURL(token, ready), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	readEvent(ctx, t, conn, proto.EventReadyUsersChange, nil)
	return conn
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}))
}

// readEvent skips frames until an event named name arrives whose data
// satisfies match (any data when match is nil).
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, name string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %s", name)
		if f.Type == proto.OutboundTypeEvent && f.Event == name && (match == nil || match(f.Data)) {
			return f.Data
		}
	}
}

// readError skips event frames until an error frame arrives.
func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()
	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for error frame")
		if f.Type == proto.OutboundTypeError {
			require.NotNil(t, f.Error)
			return f.Error
		}
	}
}

// readUntilClosed drains conn and returns the close status it ends with.
func readUntilClosed(ctx context.Context, t *testing.T, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func incomingIs(want ...string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var d proto.RequestListsData
		if err := json.Unmarshal(raw, &d); err != nil {
			return false
		}
		return strings.Join(d.Requesters, ",") == strings.Join(want, ",")
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
