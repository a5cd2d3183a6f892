package lobby

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventReadyUsers carries the full list of ready identities.
	EventReadyUsers EventKind = iota
	// EventRequestLists carries one identity's outgoing and incoming requests.
	EventRequestLists
	// EventRedirect sends a matched player to its game session.
	EventRedirect
	// EventError notifies a client about a rejected command.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReadyUsers:
		return "ready_users"
	case EventRequestLists:
		return "request_lists"
	case EventRedirect:
		return "redirect"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the lobby.
type Event struct {
	Kind       EventKind
	ReadyUsers []string
	Outgoing   []string
	Incoming   []string
	Redirect   *Redirect
	Error      *CoreError
}

// Redirect points a matched player at its game session.
type Redirect struct {
	SessionID string
	URL       string
}
