package dispatch

import "errors"

var (
	// ErrQueued indicates a transport event accepted behind the active
	// dispatch; it will be processed when the active one reaches a
	// terminal state.
	ErrQueued = errors.New("dispatch: queued behind active dispatch")

	// ErrNoActiveDispatch indicates an Accept/Decline with nothing
	// awaiting confirmation.
	ErrNoActiveDispatch = errors.New("dispatch: no dispatch awaiting confirmation")

	// ErrWrongDispatch indicates an Accept/Decline naming a dispatch
	// that is not the one awaiting confirmation — a stale prompt.
	ErrWrongDispatch = errors.New("dispatch: not the dispatch awaiting confirmation")
)
