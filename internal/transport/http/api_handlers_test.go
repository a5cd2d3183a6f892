package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, env *testEnv, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := env.ts.Client().Post(env.ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	env := startTestServer(t, nil)
	creds := map[string]string{"username": "alice", "password": "password123"}

	resp := postJSON(t, env, "/api/register", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, env, "/api/register", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, env, "/api/login", map[string]string{"username": "alice", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, env, "/api/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "alice", out.Username)

	identity, err := env.auth.Authenticate(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestRegisterValidation(t *testing.T) {
	env := startTestServer(t, nil)

	resp := postJSON(t, env, "/api/register", map[string]string{"username": "al", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, env, "/api/register", map[string]string{"username": "has space", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := startTestServer(t, nil)

	for _, path := range []string{"/api/lobby", "/api/sessions", "/api/sessions/x"} {
		assert.Equal(t, http.StatusUnauthorized, env.get(t, path, "").StatusCode, path)
		assert.Equal(t, http.StatusUnauthorized, env.get(t, path, "bogus").StatusCode, path)
	}
}

func TestLobbyEndpoint(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	aliceToken := env.token(t, "alice")
	env.dial(ctx, t, aliceToken, true)
	env.dial(ctx, t, env.token(t, "bob"), false)
	require.NoError(t, env.hub.Challenge("bob", "alice"))

	resp := env.get(t, "/api/lobby", aliceToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out LobbyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, 2, out.Stats.Connected)
	assert.Equal(t, 1, out.Stats.Ready)
	assert.Equal(t, 1, out.Stats.Pending)
	assert.Equal(t, []string{"alice"}, out.ReadyUsers)
	assert.Equal(t, []string{"bob"}, out.Requesters)
	assert.Empty(t, out.Requestees)
}

func TestSessionNotFound(t *testing.T) {
	env := startTestServer(t, nil)
	resp := env.get(t, "/api/sessions/missing", env.token(t, "alice"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterTrimsIdentity(t *testing.T) {
	env := startTestServer(t, nil)

	resp := postJSON(t, env, "/api/register", map[string]string{"username": "  dave ", "password": "password123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "dave", out.Username)

	resp = postJSON(t, env, "/api/register", map[string]string{"username": "dave", "password": "password123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
