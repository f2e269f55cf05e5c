// Package tesptest provides a TESP server for tests. It records every request
// it receives and answers with whatever the Handler returns.
package tesptest

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/transport"
)

const RequestBufferSize = 255

// Handler returns the response to req, or nil to send nothing.
type Handler func(req protocol.Request) protocol.Response

// Ack answers every request with OK, and pings with PONG.
func Ack(req protocol.Request) protocol.Response {
	if _, ok := req.(*protocol.Ping); ok {
		return &protocol.Pong{}
	}

	return &protocol.OK{}
}

// Silent never answers.
func Silent(protocol.Request) protocol.Response {
	return nil
}

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	listener   net.Listener
	loopWaiter sync.WaitGroup

	handler  Handler
	requests chan protocol.Request
	accepted atomic.Int64

	mu          sync.Mutex
	activeConns map[*transport.ServerChannel]struct{}

	log *zap.Logger
}

// NewServer starts a server on a free loopback port.
func NewServer(handler Handler, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if handler == nil {
		handler = Ack
	}

	listener, err := reuseport.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		ctx:         ctx,
		cancel:      cancel,
		listener:    listener,
		handler:     handler,
		requests:    make(chan protocol.Request, RequestBufferSize),
		activeConns: make(map[*transport.ServerChannel]struct{}),
		log:         log,
	}

	s.loopWaiter.Add(1)
	go func() {
		defer s.loopWaiter.Done()
		s.acceptLoop()
	}()

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Requests delivers every request the server has decoded, in arrival order.
func (s *Server) Requests() <-chan protocol.Request {
	return s.requests
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// DropConns closes every open client connection but keeps listening.
func (s *Server) DropConns() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for conn := range s.activeConns {
		err = multierr.Append(err, conn.Close())
		delete(s.activeConns, conn)
	}

	return err
}

// Close stops the listener, drops all connections and waits for the
// connection loops to exit.
func (s *Server) Close() error {
	s.cancel()

	err := multierr.Combine(
		s.listener.Close(),
		s.DropConns(),
	)

	s.loopWaiter.Wait()

	return err
}

func (s *Server) acceptLoop() {
	log := s.log.Named("accept")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}

			log.Warn("Failed to accept", zap.Error(err))
			return
		}

		channel := transport.NewServerChannel(conn, transport.Options{
			Log: s.log.Named("conn"),
		})
		s.addConn(channel)
		s.accepted.Add(1)

		s.loopWaiter.Add(1)
		go func() {
			defer s.loopWaiter.Done()
			defer s.removeConn(channel)

			s.serve(channel)
		}()
	}
}

func (s *Server) serve(channel *transport.ServerChannel) {
	log := s.log.Named("serve")

	for {
		req, err := channel.Read(s.ctx)
		if err != nil {
			log.Debug("Connection loop exiting", zap.Error(err))
			return
		}

		select {
		case s.requests <- req:
		case <-s.ctx.Done():
			return
		}

		resp := s.handler(req)
		if resp == nil {
			continue
		}

		if err := channel.Write(s.ctx, resp); err != nil {
			log.Warn("Failed to respond",
				zap.Stringer("code", req.Code()),
				zap.Error(err))
			return
		}
	}
}

func (s *Server) addConn(channel *transport.ServerChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeConns[channel] = struct{}{}
}

func (s *Server) removeConn(channel *transport.ServerChannel) {
	s.mu.Lock()
	delete(s.activeConns, channel)
	s.mu.Unlock()

	channel.Close()
}
