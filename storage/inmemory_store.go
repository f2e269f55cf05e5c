package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/pacoapp/tesp/event"
)

const keyPrefix = "ev_"

// InmemoryStore keeps every event in a single JSON document of the form
//
//   {"ev_1": {"event": {...}, "uploaded": false, "lat": "", ...}, ...}
//
// so that the whole store can be backed up or restored as one blob.
type InmemoryStore struct {
	mu     sync.Mutex
	values []byte
	seq    uint64

	updateChans []chan *Update

	// stop willl be closed when Close() is called
	stop chan struct{}
}

// record holds the fields of an event that never go on the wire.
type record struct {
	Event    json.RawMessage `json:"event"`
	Uploaded bool            `json:"uploaded"`
	Lat      string          `json:"lat,omitempty"`
	Lon      string          `json:"lon,omitempty"`
	Shared   bool            `json:"shared,omitempty"`
	Joined   bool            `json:"joined,omitempty"`
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}
	i.updateChans = nil

	return nil
}

func (i *InmemoryStore) Add(ctx context.Context, ev *event.Event) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("Failed to encode event: %w", err)
	}

	rec, err := json.Marshal(record{
		Event:    raw,
		Uploaded: ev.Uploaded,
		Lat:      ev.Lat,
		Lon:      ev.Lon,
		Shared:   ev.Shared,
		Joined:   ev.Joined,
	})
	if err != nil {
		return "", fmt.Errorf("Failed to encode event: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.seq++
	key := keyPrefix + strconv.FormatUint(i.seq, 10)

	values, err := sjson.SetRawBytes(i.values, key, rec)
	if err != nil {
		return "", err
	}
	i.values = values

	if i.isRunning() {
		for _, updateChan := range i.updateChans {
			select {
			case updateChan <- &Update{Key: key}:
			default:
				// listener is behind, it will see this event on its next Pending()
			}
		}
	}

	return key, nil
}

func (i *InmemoryStore) Get(ctx context.Context, key string) (*event.Event, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !isKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	result := gjson.GetBytes(i.values, key)
	if !result.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return decodeRecord(result)
}

func (i *InmemoryStore) Pending(ctx context.Context) ([]Entry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc := gjson.ParseBytes(i.values)

	var (
		pending []Entry
		err     error
	)

	doc.ForEach(func(key, value gjson.Result) bool {
		if value.Get("uploaded").Bool() {
			return true
		}

		var ev *event.Event
		if ev, err = decodeRecord(value); err != nil {
			err = fmt.Errorf("Failed to decode %s: %w", key.String(), err)
			return false
		}

		pending = append(pending, Entry{Key: key.String(), Event: ev})
		return true
	})

	return pending, err
}

func (i *InmemoryStore) MarkUploaded(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !isKey(key) || !gjson.GetBytes(i.values, key).Exists() {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	values, err := sjson.SetBytes(i.values, key+".uploaded", true)
	if err != nil {
		return err
	}
	i.values = values

	return nil
}

func (i *InmemoryStore) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := 0
	gjson.ParseBytes(i.values).ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})

	return n
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, 255)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

func (i *InmemoryStore) Restore(values []byte) error {
	doc := gjson.ParseBytes(values)
	if !gjson.ValidBytes(values) || !doc.IsObject() {
		return ErrInvalid
	}

	var (
		seq   uint64
		valid = true
	)

	// Every record must be one the store could have written, otherwise
	// Pending or MarkUploaded would fail on it forever.
	doc.ForEach(func(key, value gjson.Result) bool {
		n, ok := keySeq(key.String())
		if !ok || !value.IsObject() || !value.Get("event").IsObject() {
			valid = false
			return false
		}

		if n > seq {
			seq = n
		}
		return true
	})

	if !valid {
		return ErrInvalid
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	i.seq = seq

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

// isKey reports whether key has the form of a store-assigned key. Anything
// else could be misread as a gjson path.
func isKey(key string) bool {
	_, ok := keySeq(key)
	return ok
}

func keySeq(key string) (uint64, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return 0, false
	}

	n, err := strconv.ParseUint(key[len(keyPrefix):], 10, 64)
	return n, err == nil
}

func decodeRecord(result gjson.Result) (*event.Event, error) {
	ev := &event.Event{}
	if err := json.Unmarshal([]byte(result.Get("event").Raw), ev); err != nil {
		return nil, err
	}

	ev.Uploaded = result.Get("uploaded").Bool()
	ev.Lat = result.Get("lat").String()
	ev.Lon = result.Get("lon").String()
	ev.Shared = result.Get("shared").Bool()
	ev.Joined = result.Get("joined").Bool()

	return ev, nil
}

var _ Store = (*InmemoryStore)(nil)
