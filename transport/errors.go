package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport is matched by every I/O failure on an established channel,
	// including chunk timeouts.
	ErrTransport = errors.New("transport failure")

	ErrTimeout = errors.New("read timed out mid-frame")

	// ErrBroken is returned by a channel that has already failed.
	ErrBroken = errors.New("channel is broken")
)

// TimeoutError is returned when a partially received frame stalls for longer
// than the chunk timeout. It matches both ErrTimeout and ErrTransport.
type TimeoutError struct {
	Timeout  time.Duration
	Buffered int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s: no data for %s with %d bytes of a frame buffered",
		ErrTransport, ErrTimeout, e.Timeout, e.Buffered)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrTransport
}
