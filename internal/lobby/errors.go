package lobby

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidTarget      = "invalid_target"
	ErrCodeAlreadyPending     = "already_pending"
	ErrCodeNotInLobby         = "not_in_lobby"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeSessionUnavailable = "session_unavailable"
)

var (
	// ErrInvalidTarget is returned for self-challenges and challenges to absent identities.
	ErrInvalidTarget = errors.New("invalid challenge target")
	// ErrAlreadyPending is returned when the same requester already challenged the same requestee.
	ErrAlreadyPending = errors.New("request already pending")
	// ErrNotInLobby is returned when the acting identity holds no presence.
	ErrNotInLobby = errors.New("not in lobby")
	// ErrStale reports that the state an operation referred to is gone. It is an
	// expected race between clients, not a failure.
	ErrStale = errors.New("stale request")
	// ErrBadRequest is returned for commands the hub does not understand.
	ErrBadRequest = errors.New("bad request")
	// ErrSessionUnavailable is returned when a match was formed but the game
	// session collaborator refused it.
	ErrSessionUnavailable = errors.New("game session unavailable")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// AsCoreError maps a hub error to the code reported to the caller.
// Stale results are absorbed and map to nil.
func AsCoreError(err error) *CoreError {
	switch {
	case err == nil, errors.Is(err, ErrStale):
		return nil
	case errors.Is(err, ErrInvalidTarget):
		return coreError(ErrCodeInvalidTarget, err.Error())
	case errors.Is(err, ErrAlreadyPending):
		return coreError(ErrCodeAlreadyPending, err.Error())
	case errors.Is(err, ErrNotInLobby):
		return coreError(ErrCodeNotInLobby, err.Error())
	case errors.Is(err, ErrSessionUnavailable):
		return coreError(ErrCodeSessionUnavailable, err.Error())
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}
