package protocol

import "fmt"

// Decoder reassembles frames from chunks of a byte stream.
//
// Bytes are fed with Write in whatever sizes the transport delivers them and
// complete frames are taken out with Next. Bytes belonging to a returned frame
// are dropped from the buffer, nothing is parsed twice.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	maxPayloadLen int
	buf           []byte

	// header of the frame in progress, valid when haveHeader is set
	haveHeader bool
	code       Code
	length     int
}

// NewDecoder returns a Decoder that rejects payloads longer than maxPayloadLen.
// A value <= 0 means DefaultMaxPayloadLen.
func NewDecoder(maxPayloadLen int) *Decoder {
	if maxPayloadLen <= 0 {
		maxPayloadLen = DefaultMaxPayloadLen
	}

	return &Decoder{maxPayloadLen: maxPayloadLen}
}

// Write buffers a chunk of the stream. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. ok is false when more bytes are needed.
//
// Once Next returns an error the stream is desynchronised and the Decoder must
// be discarded.
func (d *Decoder) Next() (frame Frame, ok bool, err error) {
	if !d.haveHeader {
		if len(d.buf) < HeaderLen {
			return Frame{}, false, nil
		}

		code, length := parseHeader(d.buf)
		if length > uint32(d.maxPayloadLen) {
			return Frame{}, false, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, d.maxPayloadLen)
		}

		d.code = code
		d.length = int(length)
		d.haveHeader = true
		d.buf = d.buf[HeaderLen:]
	}

	if len(d.buf) < d.length {
		return Frame{}, false, nil
	}

	payload := make([]byte, d.length)
	copy(payload, d.buf[:d.length])

	d.buf = d.buf[d.length:]
	if len(d.buf) == 0 {
		// release the backing array rather than keep growing it
		d.buf = nil
	}
	d.haveHeader = false

	return Frame{Code: d.code, Payload: payload}, true, nil
}

// Buffered returns the number of bytes held that are not yet part of a returned frame.
func (d *Decoder) Buffered() int {
	n := len(d.buf)
	if d.haveHeader {
		n += HeaderLen
	}

	return n
}

// Partial reports whether some, but not all, of a frame has been received.
func (d *Decoder) Partial() bool {
	return d.Buffered() > 0
}
