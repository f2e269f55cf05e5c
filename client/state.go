package client

import "github.com/pacoapp/tesp/transport"

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// session is the client's connection state. Being disconnected is a value of
// its own rather than a nil channel.
type session interface {
	state() State
}

type disconnected struct{}

func (disconnected) state() State { return Disconnected }

type connected struct {
	channel *transport.ClientChannel
}

func (connected) state() State { return Connected }
