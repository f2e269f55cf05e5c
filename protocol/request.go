package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pacoapp/tesp/event"
)

// Request is a message sent from a client to the server. The set of requests
// is closed: *Ping, *Pause, *Resume, *AddEvent and *RawData.
type Request interface {
	Message
	request()
}

type Ping struct{ emptyPayload }

func (*Ping) Code() Code { return CodeRequestPing }

// Pause asks the server to stop pushing feedback until a Resume.
type Pause struct{ emptyPayload }

func (*Pause) Code() Code { return CodeRequestPause }

type Resume struct{ emptyPayload }

func (*Resume) Code() Code { return CodeRequestResume }

// AddEvent uploads one event. It holds both the decoded event and its JSON
// encoding.
type AddEvent struct {
	event *event.Event
	raw   []byte
}

func NewAddEvent(ev *event.Event) (*AddEvent, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("Failed to encode event: %w", err)
	}

	return &AddEvent{event: ev, raw: raw}, nil
}

func AddEventFromBytes(b []byte) (*AddEvent, error) {
	raw := make([]byte, len(b))
	copy(raw, b)

	ev := &event.Event{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("%w: add event payload: %v", ErrFraming, err)
	}

	return &AddEvent{event: ev, raw: raw}, nil
}

func (*AddEvent) Code() Code { return CodeRequestAddEvent }

func (a *AddEvent) Payload() []byte { return a.raw }

func (a *AddEvent) Event() *event.Event { return a.event }

// RawData carries bytes the client does not interpret.
type RawData struct {
	data []byte
}

func NewRawData(data []byte) *RawData {
	return &RawData{data: data}
}

func (*RawData) Code() Code { return CodeRequestRawData }

func (r *RawData) Payload() []byte { return r.data }

func (*Ping) request()     {}
func (*Pause) request()    {}
func (*Resume) request()   {}
func (*AddEvent) request() {}
func (*RawData) request()  {}

// DecodeRequest turns a frame into the request variant for its code.
func DecodeRequest(f Frame) (Request, error) {
	switch f.Code {
	case CodeRequestPing, CodeRequestPause, CodeRequestResume:
		if len(f.Payload) != 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, f.Code)
		}

		switch f.Code {
		case CodeRequestPing:
			return &Ping{}, nil
		case CodeRequestPause:
			return &Pause{}, nil
		default:
			return &Resume{}, nil
		}

	case CodeRequestAddEvent:
		return AddEventFromBytes(f.Payload)

	case CodeRequestRawData:
		data := make([]byte, len(f.Payload))
		copy(data, f.Payload)
		return NewRawData(data), nil

	default:
		return nil, &UnknownCodeError{Code: f.Code}
	}
}

// Encode returns the wire form of m.
func Encode(m Message) []byte {
	return EncodeFrame(m.Code(), m.Payload())
}
