package queue

import "errors"

// Sentinel errors returned by Push.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
