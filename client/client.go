// Package client implements the TESP session client: the component
// applications use to connect to a collection server and push requests to it.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/transport"
)

const tracerName = "github.com/pacoapp/tesp/client"

var (
	// ErrConnection is matched by every failure to establish a connection:
	// refusal, unreachable host or timeout.
	ErrConnection = errors.New("connection failed")

	ErrNotConnected = errors.New("not connected")
)

// Client owns at most one connection to a TESP server.
//
// Send reconnects once when the connection is missing or broken, there is no
// other retry. A Client is not safe for concurrent use.
type Client struct {
	addr string

	connectTimeout time.Duration
	chunkTimeout   time.Duration
	maxPayloadLen  int

	dialer  Dialer
	session session

	metrics *Metrics
	tracer  trace.Tracer
	log     *zap.Logger
}

// New returns a disconnected client for the server at host:port.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		addr:           net.JoinHostPort(host, strconv.Itoa(port)),
		connectTimeout: DefaultConnectTimeout,
		chunkTimeout:   DefaultChunkTimeout,
		dialer:         &net.Dialer{},
		session:        disconnected{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = zap.NewNop()
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	c.log = c.log.With(zap.String("addr", c.addr))

	return c
}

func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) State() State {
	return c.session.state()
}

// IsBroken reports whether the client holds a channel that has failed. The
// next Send replaces it.
func (c *Client) IsBroken() bool {
	if s, ok := c.session.(connected); ok {
		return s.channel.IsBroken()
	}

	return false
}

// Connect opens a new connection, replacing any current one. On failure the
// client is left disconnected and the error matches ErrConnection.
func (c *Client) Connect(ctx context.Context) (err error) {
	ctx, span := c.tracer.Start(ctx, "tesp.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tesp.addr", c.addr)))
	defer func() {
		endSpan(span, err)
	}()

	if err := c.release(); err != nil {
		c.log.Warn("Failed to close replaced connection", zap.Error(err))
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
	if err != nil {
		c.metrics.connectFailed()
		c.log.Warn("Failed to connect",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		return fmt.Errorf("%w: %s: %w", ErrConnection, c.addr, err)
	}

	c.session = connected{
		channel: transport.NewClientChannel(conn, transport.Options{
			ChunkTimeout:  c.chunkTimeout,
			MaxPayloadLen: c.maxPayloadLen,
			Log:           c.log.Named("channel"),
		}),
	}

	c.metrics.connected()
	c.log.Info("Connected", zap.Duration("elapsed", time.Since(start)))

	return nil
}

// Send writes req to the server, connecting first if there is no usable
// connection. It does not wait for a response.
func (c *Client) Send(ctx context.Context, req protocol.Request) (err error) {
	ctx, span := c.tracer.Start(ctx, "tesp.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tesp.addr", c.addr),
			attribute.String("tesp.code", req.Code().String()),
			attribute.Int("tesp.payload_len", len(req.Payload()))))
	defer func() {
		endSpan(span, err)
	}()

	channel, ok := c.liveChannel()
	if !ok {
		if c.State() == Connected {
			c.log.Info("Channel broken, reconnecting")
			c.metrics.reconnected()
		}

		if err := c.Connect(ctx); err != nil {
			return err
		}

		channel, _ = c.liveChannel()
	}

	if err := channel.Write(ctx, req); err != nil {
		c.metrics.failed(err)
		return err
	}

	c.metrics.sent(req)
	return nil
}

// Receive reads the next response from the server. Responses are not matched
// to the requests that caused them.
func (c *Client) Receive(ctx context.Context) (protocol.Response, error) {
	s, ok := c.session.(connected)
	if !ok {
		return nil, ErrNotConnected
	}

	resp, err := s.channel.Read(ctx)
	if err != nil {
		c.metrics.failed(err)
		return nil, err
	}

	c.metrics.received(resp)
	return resp, nil
}

// Close releases the connection. It is safe to call at any time and any
// number of times; errors are logged, not returned.
func (c *Client) Close() {
	if err := c.release(); err != nil {
		c.log.Warn("Failed to close connection cleanly", zap.Error(err))
	}
}

func (c *Client) liveChannel() (*transport.ClientChannel, bool) {
	s, ok := c.session.(connected)
	if !ok || s.channel.IsBroken() {
		return nil, false
	}

	return s.channel, true
}

func (c *Client) release() error {
	s, ok := c.session.(connected)
	c.session = disconnected{}

	if !ok {
		return nil
	}

	return s.channel.Close()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
