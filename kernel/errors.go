package kernel

import "errors"

var (
	// ErrBackend wraps a failed backend call. History up to the failure is
	// preserved and the session remains usable.
	ErrBackend = errors.New("backend call failed")

	// ErrRoundCapExceeded is returned by Run when the loop exhausts its
	// round budget without the backend producing a final answer.
	ErrRoundCapExceeded = errors.New("round cap exceeded")

	// ErrTurnCanceled is returned by Run when its context is canceled.
	ErrTurnCanceled = errors.New("turn canceled")
)
