package net

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Server accepts TCP connections and creates Sessions.
// New sessions are handed to the engine loop via a channel; dead ones are
// observed by the loop itself through Session.IsClosed.
type Server struct {
	listener     net.Listener
	nextID       atomic.Uint64
	newConns     chan *Session
	inSize       int
	outSize      int
	pktPerSec    int
	writeTimeout time.Duration
	wake         func()
	log          *zap.Logger
	closeCh      chan struct{}
}

func NewServer(bindAddr string, inSize, outSize, pktPerSec int, writeTimeout time.Duration, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener:     ln,
		newConns:     make(chan *Session, 64),
		inSize:       inSize,
		outSize:      outSize,
		pktPerSec:    pktPerSec,
		writeTimeout: writeTimeout,
		log:          log,
		closeCh:      make(chan struct{}),
	}
	return s, nil
}

// SetWake installs the callback used to wake the engine loop when a new
// session or packet arrives. Must be called before AcceptLoop starts.
func (s *Server) SetWake(fn func()) {
	s.wake = fn
}

// AcceptLoop runs in its own goroutine. It accepts connections, creates
// sessions, and pushes them onto the newConns channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.inSize, s.outSize, s.pktPerSec, s.writeTimeout, s.wake, s.log)
		sess.Start()

		s.log.Info(fmt.Sprintf("client connected  session=%d  ip=%s", id, sess.IP))

		select {
		case s.newConns <- sess:
			if s.wake != nil {
				s.wake()
			}
		default:
			s.log.Warn("connection queue full, rejecting new connection")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
