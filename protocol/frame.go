package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderLen is the size of the code and length fields preceding every payload.
	HeaderLen = 5

	DefaultMaxPayloadLen = 8 * 1024 * 1024
)

// Frame is one complete wire message.
type Frame struct {
	Code    Code
	Payload []byte
}

// EncodeFrame returns the wire form of a frame with the given code and payload.
func EncodeFrame(code Code, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderLen+len(payload)), code, payload)
}

// AppendFrame appends the wire form of a frame to buf and returns the extended buffer.
func AppendFrame(buf []byte, code Code, payload []byte) []byte {
	var header [HeaderLen]byte
	header[0] = byte(code)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	buf = append(buf, header[:]...)
	return append(buf, payload...)
}

// ReadFrame reads exactly one frame from r.
//
// maxPayloadLen bounds the payload; a value <= 0 means DefaultMaxPayloadLen.
func ReadFrame(r io.Reader, maxPayloadLen int) (Frame, error) {
	if maxPayloadLen <= 0 {
		maxPayloadLen = DefaultMaxPayloadLen
	}

	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, shortFrame(err)
	}

	code, length := parseHeader(header[:])
	if length > uint32(maxPayloadLen) {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, maxPayloadLen)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, shortFrame(err)
	}

	return Frame{Code: code, Payload: payload}, nil
}

func parseHeader(b []byte) (Code, uint32) {
	return Code(b[0]), binary.BigEndian.Uint32(b[1:HeaderLen])
}

func shortFrame(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortFrame
	}

	return err
}
