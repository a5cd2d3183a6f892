package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/spellbound-server/internal/proto"
)

// lobby_smoke signs in two players, has the first challenge the second and
// the second accept, then prints the redirect both of them receive.
func main() {
	if err := run(); err != nil {
		log.Printf("lobby_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	challenger := flag.String("challenger", "smoke_a", "username of the challenging player")
	opponent := flag.String("opponent", "smoke_b", "username of the accepting player")
	password := flag.String("password", "smoke-password", "password used for both players")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tokenA, err := signIn(ctx, *base, *challenger, *password)
	if err != nil {
		return err
	}
	tokenB, err := signIn(ctx, *base, *opponent, *password)
	if err != nil {
		return err
	}

	connA, err := dial(ctx, *base, tokenA)
	if err != nil {
		return err
	}
	defer connA.CloseNow()
	connB, err := dial(ctx, *base, tokenB)
	if err != nil {
		return err
	}
	defer connB.CloseNow()

	if err := send(ctx, connA, proto.InboundTypeRequesting, proto.RequestingData{Target: *opponent}); err != nil {
		return err
	}
	if _, err := await(ctx, connB, proto.EventRequesterRequesteesChange); err != nil {
		return err
	}
	if err := send(ctx, connB, proto.InboundTypeIsAccepted, proto.IsAcceptedData{Accepted: true, From: *challenger}); err != nil {
		return err
	}

	for name, conn := range map[string]*websocket.Conn{*challenger: connA, *opponent: connB} {
		raw, err := await(ctx, conn, proto.EventRedirect)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		var redirect proto.RedirectData
		if err := json.Unmarshal(raw, &redirect); err != nil {
			return fmt.Errorf("decode redirect: %w", err)
		}
		fmt.Printf("%s -> session=%s url=%s\n", name, redirect.SessionID, redirect.URL)
	}
	return nil
}

// signIn registers the user, falling back to login when it already exists.
func signIn(ctx context.Context, base, username, password string) (string, error) {
	token, status, err := postAuth(ctx, base+"/api/register", username, password)
	if err != nil {
		return "", err
	}
	if status == http.StatusConflict {
		token, status, err = postAuth(ctx, base+"/api/login", username, password)
		if err != nil {
			return "", err
		}
	}
	if token == "" {
		return "", fmt.Errorf("sign in %s: status %d", username, status)
	}
	return token, nil
}

func postAuth(ctx context.Context, endpoint, username, password string) (string, int, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
	}
	if resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", resp.StatusCode, fmt.Errorf("decode token: %w", err)
		}
	}
	return out.Token, resp.StatusCode, nil
}

func dial(ctx context.Context, base, token string) (*websocket.Conn, error) {
	wsURL := strings.Replace(base, "http", "ws", 1) + "/ws/lobby?ready=true&token=" + url.QueryEscape(token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if _, err := await(ctx, conn, proto.EventReadyUsersChange); err != nil {
		conn.CloseNow()
		return nil, err
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func await(ctx context.Context, conn *websocket.Conn, event string) (json.RawMessage, error) {
	for {
		var frame struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return nil, fmt.Errorf("await %s: %w", event, err)
		}
		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			return nil, errors.New(frame.Error.Code + ": " + frame.Error.Msg)
		}
		log.Printf("recv type=%s event=%s data=%s", frame.Type, frame.Event, frame.Data)
		if frame.Event == event {
			return frame.Data, nil
		}
	}
}
