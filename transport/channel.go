package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pacoapp/tesp/protocol"
)

// aLongTimeAgo is a deadline in the past, setting it unblocks pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Channel turns one connection into a stream of typed messages. It decodes
// messages of the family In and encodes messages of the family Out, so a
// client channel only ever reads responses and writes requests.
//
// A Channel is Open until any I/O, framing or decoding error, after which it
// is Broken for good. Reads and writes may run concurrently with each other
// but not with themselves.
type Channel[In, Out protocol.Message] struct {
	conn   net.Conn
	decode func(protocol.Frame) (In, error)

	decoder      *protocol.Decoder
	readBuf      []byte
	chunkTimeout time.Duration

	broken    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	log *zap.Logger
}

// ClientChannel is the channel a client holds: it reads responses and writes requests.
type ClientChannel = Channel[protocol.Response, protocol.Request]

// ServerChannel is the mirror of ClientChannel.
type ServerChannel = Channel[protocol.Request, protocol.Response]

func NewChannel[In, Out protocol.Message](
	conn net.Conn,
	decode func(protocol.Frame) (In, error),
	options Options,
) *Channel[In, Out] {
	return &Channel[In, Out]{
		conn:         conn,
		decode:       decode,
		decoder:      protocol.NewDecoder(options.MaxPayloadLen),
		readBuf:      make([]byte, readBufferSize),
		chunkTimeout: options.chunkTimeout(),
		log:          options.log(),
	}
}

func NewClientChannel(conn net.Conn, options Options) *ClientChannel {
	return NewChannel[protocol.Response, protocol.Request](conn, protocol.DecodeResponse, options)
}

func NewServerChannel(conn net.Conn, options Options) *ServerChannel {
	return NewChannel[protocol.Request, protocol.Response](conn, protocol.DecodeRequest, options)
}

// Write encodes msg and writes it with a single Write call. Partial writes are
// not retried, on failure the channel is Broken.
func (c *Channel[In, Out]) Write(ctx context.Context, msg Out) error {
	if c.IsBroken() {
		return ErrBroken
	}

	data := protocol.Encode(msg)

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	if _, err := c.conn.Write(data); err != nil {
		if ctxErr := contextError(ctx, err); ctxErr != nil {
			err = ctxErr
		}

		return c.fail(fmt.Errorf("%w: write %s: %w", ErrTransport, msg.Code(), err))
	}

	c.log.Debug("Wrote frame",
		zap.Stringer("code", msg.Code()),
		zap.Int("len", len(data)))

	return nil
}

// Read blocks until a whole frame has arrived and returns its decoded message.
//
// Waiting for the first byte of a frame is bounded only by ctx. Once part of a
// frame is buffered every further chunk must arrive within the chunk timeout.
func (c *Channel[In, Out]) Read(ctx context.Context) (In, error) {
	var zero In

	if c.IsBroken() {
		return zero, ErrBroken
	}

	for {
		frame, ok, err := c.decoder.Next()
		if err != nil {
			return zero, c.fail(err)
		}

		if ok {
			msg, err := c.decode(frame)
			if err != nil {
				return zero, c.fail(err)
			}

			c.log.Debug("Read frame",
				zap.Stringer("code", frame.Code),
				zap.Int("len", len(frame.Payload)))

			return msg, nil
		}

		if err := c.fill(ctx); err != nil {
			return zero, c.fail(err)
		}
	}
}

// fill performs one read from the connection into the decoder.
func (c *Channel[In, Out]) fill(ctx context.Context) error {
	partial := c.decoder.Partial()

	var (
		deadline   time.Time
		chunkBound bool
	)

	if partial && c.chunkTimeout > 0 {
		deadline = time.Now().Add(c.chunkTimeout)
		chunkBound = true
	}

	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
		chunkBound = false
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	n, err := c.conn.Read(c.readBuf)
	stop()

	if n > 0 {
		_, _ = c.decoder.Write(c.readBuf[:n])
		// Surface the error on the next read, the bytes may complete a frame.
		return nil
	}

	if err == nil {
		return nil
	}

	if chunkBound && isTimeout(err) && ctx.Err() == nil {
		return &TimeoutError{Timeout: c.chunkTimeout, Buffered: c.decoder.Buffered()}
	}

	if ctxErr := contextError(ctx, err); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrTransport, ctxErr)
	}

	if errors.Is(err, io.EOF) && partial {
		return fmt.Errorf("%w: %d bytes buffered", protocol.ErrShortFrame, c.decoder.Buffered())
	}

	return fmt.Errorf("%w: read: %w", ErrTransport, err)
}

// contextError returns the context's error when it, rather than the
// connection, caused err.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if deadline, ok := ctx.Deadline(); ok && isTimeout(err) && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}

	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Channel[In, Out]) fail(err error) error {
	if c.broken.CompareAndSwap(false, true) {
		c.log.Warn("Channel broken", zap.Error(err))
	}

	return err
}

// IsBroken reports whether the channel has failed and must be replaced.
func (c *Channel[In, Out]) IsBroken() bool {
	return c.broken.Load()
}

// Close closes the underlying connection. Only the first call does anything.
func (c *Channel[In, Out]) Close() error {
	c.closeOnce.Do(func() {
		c.broken.Store(true)
		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

func (c *Channel[In, Out]) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Channel[In, Out]) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
