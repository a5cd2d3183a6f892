package lobby

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, sessions SessionStarter) *Hub {
	t.Helper()

	seq := 0
	return NewHub(sessions, Options{
		SessionURLPrefix: "/versus/",
		Strict:           true,
		NewSessionID: func() string {
			seq++
			return fmt.Sprintf("session-%d", seq)
		},
		Now: func() time.Time { return time.Unix(1700000000, 0) },
	}, nil)
}

func connect(t *testing.T, hub *Hub, identity string, ready bool) *Client {
	t.Helper()

	c := NewClient("conn-"+identity, identity, 64)
	hub.Register(c, ready)
	return c
}

// drain returns every event currently buffered for c.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofKind(events []*Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// lastOf returns the most recent event of kind, failing if there is none.
func lastOf(t *testing.T, events []*Event, kind EventKind) *Event {
	t.Helper()

	matching := ofKind(events, kind)
	require.NotEmpty(t, matching, "expected a %s event", kind)
	return matching[len(matching)-1]
}

type recordingStarter struct {
	mu      sync.Mutex
	matches []*Match
	err     error
}

func (r *recordingStarter) StartSession(_ context.Context, m *Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.matches = append(r.matches, m)
	return nil
}
