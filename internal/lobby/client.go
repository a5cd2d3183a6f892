package lobby

import "sync"

const defaultEventBuffer = 16

// CloseReason tells the transport why the hub let go of a client.
type CloseReason int

const (
	// CloseReplaced means a newer connection took over the identity.
	CloseReplaced CloseReason = iota + 1
	// CloseMatched means the client left the lobby for a game session.
	CloseMatched
	// CloseSlowConsumer means the client could not keep up with events.
	CloseSlowConsumer
)

func (r CloseReason) String() string {
	switch r {
	case CloseReplaced:
		return "replaced by a newer connection"
	case CloseMatched:
		return "matched"
	case CloseSlowConsumer:
		return "too slow to receive lobby updates"
	default:
		return "closed"
	}
}

// Client is a lobby connection as seen by the hub.
type Client struct {
	ID       string
	Identity string
	Events   chan *Event

	done   chan struct{}
	once   sync.Once
	reason CloseReason
}

// NewClient constructs a client with an event buffer of the given size.
func NewClient(id, identity string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Client{
		ID:       id,
		Identity: identity,
		Events:   make(chan *Event, buffer),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub no longer serves this client. Events already
// buffered are still meant to be written out.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Reason is valid after Done is closed.
func (c *Client) Reason() CloseReason {
	return c.reason
}

func (c *Client) close(reason CloseReason) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// deliver never blocks; it reports false when the buffer is full.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// discardPending drops every buffered event without blocking.
func (c *Client) discardPending() {
	for {
		select {
		case <-c.Events:
		default:
			return
		}
	}
}
