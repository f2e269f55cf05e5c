package client

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout = 5000 * time.Millisecond
	DefaultChunkTimeout   = 5000 * time.Millisecond
)

// Dialer opens the TCP connection for a client. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Option func(*Client)

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// WithChunkTimeout bounds the stall allowed while a frame is partially received.
func WithChunkTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.chunkTimeout = timeout
	}
}

func WithMaxPayloadLen(n int) Option {
	return func(c *Client) {
		c.maxPayloadLen = n
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithDialer(dialer Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}
