package lobby

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSetReady toggles the client's readiness.
	CommandSetReady CommandKind = iota
	// CommandChallenge sends a request to Target.
	CommandChallenge
	// CommandCancel withdraws the client's request to Target.
	CommandCancel
	// CommandRespond accepts or rejects the request Target sent to the client.
	CommandRespond
)

// Command represents an action requested by a client.
type Command struct {
	Kind   CommandKind
	Ready  bool
	Target string
	Accept bool
}
