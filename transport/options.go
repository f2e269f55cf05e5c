package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultChunkTimeout = 5000 * time.Millisecond

	readBufferSize = 4096
)

type Options struct {
	// ChunkTimeout bounds the wait for more bytes once part of a frame has
	// arrived. Zero means DefaultChunkTimeout, negative disables it.
	ChunkTimeout time.Duration

	// MaxPayloadLen caps inbound payloads, zero means protocol.DefaultMaxPayloadLen
	MaxPayloadLen int

	Log *zap.Logger
}

func (o Options) chunkTimeout() time.Duration {
	switch {
	case o.ChunkTimeout == 0:
		return DefaultChunkTimeout
	case o.ChunkTimeout < 0:
		return 0
	default:
		return o.ChunkTimeout
	}
}

func (o Options) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}

	return o.Log
}
