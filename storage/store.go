package storage

import (
	"context"
	"errors"

	"github.com/pacoapp/tesp/event"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrInvalid  = errors.New("invalid store document")
)

// Update notifies listeners that an event was added under Key.
type Update struct {
	Key string
}

// Entry is a stored event and the key it was stored under.
type Entry struct {
	Key   string
	Event *event.Event
}

// Store holds events until they have been uploaded.
type Store interface {
	Add(ctx context.Context, ev *event.Event) (string, error)
	Get(ctx context.Context, key string) (*event.Event, error)

	// Pending returns events not yet marked uploaded, oldest first.
	Pending(ctx context.Context) ([]Entry, error)
	MarkUploaded(ctx context.Context, key string) error
	Len() int

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}
