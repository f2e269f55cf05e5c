package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/storage"
)

const (
	DefaultUploadRate  = 50
	DefaultUploadBurst = 10
)

// Sender is the part of a Client the Uploader needs.
type Sender interface {
	Send(ctx context.Context, req protocol.Request) error
}

type UploaderOptions struct {
	// Rate is the maximum number of events sent per second, zero means
	// DefaultUploadRate and a negative value disables the limit.
	Rate float64

	// Burst is the number of events that may be sent back to back.
	Burst int

	Log *zap.Logger
}

// Uploader drains a store of pending events through a Sender, one AddEvent
// request per event.
type Uploader struct {
	sender  Sender
	store   storage.Store
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewUploader(sender Sender, store storage.Store, options UploaderOptions) *Uploader {
	limit := rate.Limit(options.Rate)
	switch {
	case options.Rate == 0:
		limit = DefaultUploadRate
	case options.Rate < 0:
		limit = rate.Inf
	}

	burst := options.Burst
	if burst < 1 {
		burst = DefaultUploadBurst
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Uploader{
		sender:  sender,
		store:   store,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// Flush sends every pending event and marks each uploaded once it has been
// written. It stops at the first failure and returns the number sent so far.
func (u *Uploader) Flush(ctx context.Context) (int, error) {
	pending, err := u.store.Pending(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, entry := range pending {
		if err := u.limiter.Wait(ctx); err != nil {
			return sent, err
		}

		req, err := protocol.NewAddEvent(entry.Event)
		if err != nil {
			return sent, fmt.Errorf("Failed to encode %s: %w", entry.Key, err)
		}

		if err := u.sender.Send(ctx, req); err != nil {
			return sent, fmt.Errorf("Failed to send %s: %w", entry.Key, err)
		}

		if err := u.store.MarkUploaded(ctx, entry.Key); err != nil {
			return sent, err
		}

		sent++
		u.log.Debug("Uploaded event", zap.String("key", entry.Key))
	}

	return sent, nil
}

// Run flushes the store now and after every update until ctx is cancelled or
// the store is closed. Failed uploads are retried on the next update.
func (u *Uploader) Run(ctx context.Context) {
	log := u.log.Named("run")
	updates := u.store.ListenToUpdates()

	u.flushAndLog(ctx, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, exiting...")
			return

		case _, ok := <-updates:
			if !ok {
				log.Info("Store closed, exiting...")
				return
			}

			u.flushAndLog(ctx, log)
		}
	}
}

func (u *Uploader) flushAndLog(ctx context.Context, log *zap.Logger) {
	sent, err := u.Flush(ctx)
	if err != nil && ctx.Err() == nil {
		log.Warn("Failed to upload pending events", zap.Int("sent", sent), zap.Error(err))
		return
	}

	if sent > 0 {
		log.Info("Uploaded events", zap.Int("sent", sent))
	}
}
