package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming is matched by every error caused by malformed frame bytes.
	ErrFraming = errors.New("malformed frame")

	ErrShortFrame        = fmt.Errorf("%w: stream ended before a complete frame", ErrFraming)
	ErrPayloadTooLarge   = fmt.Errorf("%w: payload length exceeds limit", ErrFraming)
	ErrUnexpectedPayload = fmt.Errorf("%w: payload on a message that carries none", ErrFraming)

	ErrUnknownCode = errors.New("unknown message code")
)

// UnknownCodeError is returned when a frame decodes cleanly but its code does
// not belong to the expected message family.
type UnknownCodeError struct {
	Code Code
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("%s 0x%02x", ErrUnknownCode, uint8(e.Code))
}

func (e *UnknownCodeError) Is(target error) bool {
	return target == ErrUnknownCode
}
