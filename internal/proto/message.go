package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message types. Names follow the event names the browser lobby page uses.
const (
	InboundTypeReadyStateChange = "readyStateChange"
	InboundTypeRequesting       = "requesting"
	InboundTypeIsAccepted       = "isAccepted"
	InboundTypeCancelRequest    = "cancelRequest"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReadyUsersChange          = "readyUsersChange"
	EventRequesterRequesteesChange = "requesterRequesteesChange"
	EventRedirect                  = "redirect"
)

// ReadyStateData toggles the sender's readiness.
type ReadyStateData struct {
	Ready bool `json:"ready"`
}

// RequestingData challenges another user.
type RequestingData struct {
	Target string `json:"target"`
}

// IsAcceptedData answers a challenge received from From.
type IsAcceptedData struct {
	Accepted bool   `json:"accepted"`
	From     string `json:"from"`
}

// CancelRequestData withdraws a challenge sent to Target.
type CancelRequestData struct {
	Target string `json:"target"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ReadyUsersData lists every ready user, the receiver included.
type ReadyUsersData struct {
	Users []string `json:"users"`
}

// RequestListsData is the receiver's view of pending challenges:
// Requestees were challenged by the receiver, Requesters challenged the receiver.
type RequestListsData struct {
	Requestees []string `json:"requestees"`
	Requesters []string `json:"requesters"`
}

// RedirectData sends a matched player to its game session.
type RedirectData struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
