package lobby

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options tunes a Hub.
type Options struct {
	// SessionURLPrefix is prepended to the session id in redirect events.
	SessionURLPrefix string
	// Strict panics when a mutation leaves the lobby in an inconsistent state.
	Strict bool
	// NewSessionID mints session ids. Defaults to random UUIDs.
	NewSessionID func() string
	// Now stamps matches. Defaults to time.Now.
	Now func() time.Time
}

type presence struct {
	client *Client
	ready  bool
}

// Hub is the lobby coordinator. It owns presences, readiness and pending
// requests; every read and write of that state happens under mu, and events
// are computed from the state as it stands after each mutation.
type Hub struct {
	mu        sync.Mutex
	presences map[string]*presence
	requests  *requestGraph

	sessions SessionStarter
	opts     Options
	log      *zerolog.Logger
}

// Stats is a point-in-time summary of the lobby.
type Stats struct {
	Connected int `json:"connected"`
	Ready     int `json:"ready"`
	Pending   int `json:"pending_requests"`
}

// NewHub creates a lobby hub. sessions may be nil, in which case matches are
// formed and redirected without a handoff.
func NewHub(sessions SessionStarter, opts Options, logger *zerolog.Logger) *Hub {
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		presences: make(map[string]*presence),
		requests:  newRequestGraph(),
		sessions:  sessions,
		opts:      opts,
		log:       logger,
	}
}

// Register adds a presence for client.Identity. An existing presence for the
// same identity is replaced: its connection is closed and its requests are
// dropped exactly as on disconnect. The new client receives the readiness
// list and its (empty) request lists.
func (h *Hub) Register(client *Client, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := Notice{ReadyChanged: ready}
	if old, ok := h.presences[client.Identity]; ok {
		if old.client == client {
			h.setReadyLocked(client.Identity, ready)
			return
		}
		n.Requests = h.requests.detach(client.Identity)
		// The identity stays present, so the ready list only moves if its
		// readiness flips.
		n.ReadyChanged = old.ready != ready
		old.client.close(CloseReplaced)
		h.log.Info().
			Str("identity", client.Identity).
			Str("client_id", old.client.ID).
			Msg("presence replaced by newer connection")
	}

	h.presences[client.Identity] = &presence{client: client, ready: ready}
	n.ReadyTo = []string{client.Identity}
	n.Requests = append(n.Requests, client.Identity)

	h.log.Debug().Str("identity", client.Identity).Str("client_id", client.ID).Bool("ready", ready).Msg("client registered")
	h.publish(n)
}

// Unregister removes the presence owned by client along with every request
// naming its identity. Unknown or already replaced clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.presences[client.Identity]
	if !ok || p.client != client {
		return
	}
	delete(h.presences, client.Identity)

	n := Notice{
		ReadyChanged: p.ready,
		Requests:     h.requests.detach(client.Identity),
	}
	h.log.Debug().Str("identity", client.Identity).Str("client_id", client.ID).Msg("client unregistered")
	h.publish(n)
}

// SetReady updates identity's readiness. Unchanged values and unknown
// identities produce no traffic. Pending requests are left alone.
func (h *Hub) SetReady(identity string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setReadyLocked(identity, ready)
}

// Challenge creates the request requester -> requestee.
func (h *Hub) Challenge(requester, requestee string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.challengeLocked(requester, requestee)
}

// Cancel withdraws requester's request to requestee, if any.
func (h *Hub) Cancel(requester, requestee string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(requester, requestee)
}

// Reject declines the request requester sent to requestee, if any.
func (h *Hub) Reject(requestee, requester string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(requester, requestee)
}

// ResolveAccept turns the request requester -> requestee into a Match.
// It returns ErrStale if the request or either party is gone. On success both
// players leave the lobby, every other request touching them is dropped and
// both receive a redirect.
func (h *Hub) ResolveAccept(ctx context.Context, requestee, requester string) (*Match, error) {
	h.mu.Lock()
	m, departed, err := h.acceptLocked(requestee, requester)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m, h.handoff(ctx, m, departed)
}

// Dispatch applies a command issued by client. Commands from a connection
// that no longer owns its identity's presence return ErrStale.
func (h *Hub) Dispatch(ctx context.Context, client *Client, cmd *Command) error {
	h.mu.Lock()
	m, departed, err := h.applyLocked(client, cmd)
	h.mu.Unlock()
	if err != nil || m == nil {
		return err
	}
	return h.handoff(ctx, m, departed)
}

// ReadyUsers returns the sorted list of ready identities.
func (h *Hub) ReadyUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readyLocked()
}

// Requests returns identity's outgoing and incoming requests.
func (h *Hub) Requests(identity string) RequestLists {
	h.mu.Lock()
	defer h.mu.Unlock()
	return RequestLists{
		Outgoing: h.requests.outgoing(identity),
		Incoming: h.requests.incoming(identity),
	}
}

// Stats summarises the lobby.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Connected: len(h.presences),
		Ready:     len(h.readyLocked()),
		Pending:   h.requests.size(),
	}
}

func (h *Hub) applyLocked(client *Client, cmd *Command) (*Match, []*Client, error) {
	if p, ok := h.presences[client.Identity]; !ok || p.client != client {
		return nil, nil, ErrStale
	}

	switch cmd.Kind {
	case CommandSetReady:
		h.setReadyLocked(client.Identity, cmd.Ready)
	case CommandChallenge:
		return nil, nil, h.challengeLocked(client.Identity, cmd.Target)
	case CommandCancel:
		h.dropLocked(client.Identity, cmd.Target)
	case CommandRespond:
		if cmd.Accept {
			return h.acceptLocked(client.Identity, cmd.Target)
		}
		h.dropLocked(cmd.Target, client.Identity)
	default:
		return nil, nil, ErrBadRequest
	}
	return nil, nil, nil
}

func (h *Hub) setReadyLocked(identity string, ready bool) {
	p, ok := h.presences[identity]
	if !ok || p.ready == ready {
		return
	}
	p.ready = ready
	h.publish(Notice{ReadyChanged: true})
}

func (h *Hub) challengeLocked(requester, requestee string) error {
	if _, ok := h.presences[requester]; !ok {
		return ErrNotInLobby
	}
	if requester == requestee {
		return ErrInvalidTarget
	}
	if _, ok := h.presences[requestee]; !ok {
		return ErrInvalidTarget
	}
	if !h.requests.add(requester, requestee) {
		return ErrAlreadyPending
	}
	h.publish(Notice{Requests: []string{requester, requestee}})
	return nil
}

func (h *Hub) dropLocked(requester, requestee string) {
	if !h.requests.remove(requester, requestee) {
		return
	}
	h.publish(Notice{Requests: []string{requester, requestee}})
}

// acceptLocked is the match formation step. Everything from the edge check
// to the eviction of both presences happens under the hub lock, so no other
// operation can observe or touch either identity halfway through.
func (h *Hub) acceptLocked(requestee, requester string) (*Match, []*Client, error) {
	if !h.requests.has(requester, requestee) {
		return nil, nil, ErrStale
	}

	a, okA := h.presences[requester]
	b, okB := h.presences[requestee]
	if !okA || !okB {
		h.purgeLocked(requester, requestee)
		return nil, nil, ErrStale
	}

	pending := h.requests.size()
	affected := append(h.requests.detach(requester), h.requests.detach(requestee)...)
	delete(h.presences, requester)
	delete(h.presences, requestee)

	m := &Match{
		SessionID: h.opts.NewSessionID(),
		PlayerA:   requester,
		PlayerB:   requestee,
		CreatedAt: h.opts.Now(),
	}

	h.log.Info().
		Str("session_id", m.SessionID).
		Str("requester", requester).
		Str("requestee", requestee).
		Int("dropped_requests", pending-h.requests.size()-1).
		Msg("match formed")

	h.publish(Notice{
		ReadyChanged: a.ready || b.ready,
		Requests:     affected,
	})
	return m, []*Client{a.client, b.client}, nil
}

// purgeLocked drops requests held by identities that lost their presence.
func (h *Hub) purgeLocked(ids ...string) {
	var n Notice
	for _, id := range ids {
		if _, ok := h.presences[id]; ok {
			continue
		}
		n.Requests = append(n.Requests, h.requests.detach(id)...)
	}
	if len(n.Requests) > 0 {
		h.publish(n)
	}
}

// handoff passes a formed match to the session collaborator and then sends
// both players off. It runs outside the lock: the players are no longer in
// the lobby, so nothing else can address them.
func (h *Hub) handoff(ctx context.Context, m *Match, departed []*Client) error {
	var err error
	if h.sessions != nil {
		if startErr := h.sessions.StartSession(ctx, m); startErr != nil {
			err = fmt.Errorf("%w: %v", ErrSessionUnavailable, startErr)
			h.log.Error().Err(startErr).Str("session_id", m.SessionID).Msg("game session handoff failed")
		}
	}

	var n Notice
	if err == nil {
		redirect := Redirect{SessionID: m.SessionID, URL: h.opts.SessionURLPrefix + m.SessionID}
		n.Redirects = map[string]Redirect{m.PlayerA: redirect, m.PlayerB: redirect}
	}
	deliveries := Plan(Snapshot{}, n)

	for _, c := range departed {
		// Whatever lobby state is still queued is obsolete for a departing
		// player; the redirect or error must fit in the buffer.
		c.discardPending()
		for _, d := range deliveries {
			if d.To == c.Identity {
				c.deliver(d.Event)
			}
		}
		if err != nil {
			c.deliver(&Event{Kind: EventError, Error: coreError(ErrCodeSessionUnavailable, ErrSessionUnavailable.Error())})
		}
		c.close(CloseMatched)
	}
	return err
}

// publish computes and sends the events implied by n. Callers hold mu.
func (h *Hub) publish(n Notice) {
	if h.opts.Strict {
		h.verifyLocked()
	}
	for _, d := range Plan(h.snapshotLocked(n), n) {
		p, ok := h.presences[d.To]
		if !ok {
			continue
		}
		h.send(p.client, d.Event)
	}
}

func (h *Hub) send(c *Client, ev *Event) {
	if c.deliver(ev) {
		return
	}
	h.log.Warn().
		Str("identity", c.Identity).
		Str("client_id", c.ID).
		Str("event", ev.Kind.String()).
		Msg("event buffer full, closing client")
	c.close(CloseSlowConsumer)
}

func (h *Hub) snapshotLocked(n Notice) Snapshot {
	connected := make([]string, 0, len(h.presences))
	for id := range h.presences {
		connected = append(connected, id)
	}
	sort.Strings(connected)

	requests := make(map[string]RequestLists, len(n.Requests))
	for _, id := range n.Requests {
		requests[id] = RequestLists{
			Outgoing: h.requests.outgoing(id),
			Incoming: h.requests.incoming(id),
		}
	}

	return Snapshot{
		Connected: connected,
		Ready:     h.readyLocked(),
		Requests:  requests,
	}
}

func (h *Hub) readyLocked() []string {
	ready := make([]string, 0, len(h.presences))
	for id, p := range h.presences {
		if p.ready {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// verifyLocked panics on a broken lobby invariant. A violation is a
// programming error in the hub, never a runtime condition to recover from.
func (h *Hub) verifyLocked() {
	for id, p := range h.presences {
		if p.client == nil || p.client.Identity != id {
			panic(fmt.Sprintf("lobby: presence %q is bound to the wrong client", id))
		}
	}
	h.requests.each(func(from, to string) {
		if from == to {
			panic(fmt.Sprintf("lobby: self request for %q", from))
		}
		if _, ok := h.presences[from]; !ok {
			panic(fmt.Sprintf("lobby: request %s->%s has no requester presence", from, to))
		}
		if _, ok := h.presences[to]; !ok {
			panic(fmt.Sprintf("lobby: request %s->%s has no requestee presence", from, to))
		}
		if _, ok := h.requests.in[to][from]; !ok {
			panic(fmt.Sprintf("lobby: request %s->%s missing from incoming index", from, to))
		}
	})
	for to, froms := range h.requests.in {
		for from := range froms {
			if !h.requests.has(from, to) {
				panic(fmt.Sprintf("lobby: incoming %s<-%s missing from outgoing index", to, from))
			}
		}
	}
}
