package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dwarrowdelf/server/internal/net/packet"
	"go.uber.org/zap"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the engine loop.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // engine loop reads packets from here
	OutQueue chan []byte // writer goroutine reads from here

	IP          string
	AccountName string

	outBuf [][]byte // buffered packets, flushed by the engine loop only

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// wake is invoked after a packet lands on InQueue so a blocked engine
	// loop re-evaluates its work function promptly.
	wake func()

	writeTimeout time.Duration

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int   // max packets/sec (0 = unlimited)
	pktCount   int   // packets received this second
	pktResetAt int64 // unix second of last counter reset

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize, pktPerSec int, writeTimeout time.Duration, wake func(), log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, inSize),
		OutQueue:     make(chan []byte, outSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		wake:         wake,
		writeTimeout: writeTimeout,
		pktPerSec:    pktPerSec,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateGreeting))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a packet for sending. The packet is not written to TCP until
// FlushOutput is called by the engine loop. Messages sent on a closed session
// are silently discarded so callers need no per-call health checks.
// Called only from the engine loop goroutine, so outBuf needs no lock.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop
// goroutine. Called by the engine loop once per work iteration.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.wake != nil {
			s.wake() // let the engine loop observe the dead session
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the TCP
// connection and pushes them onto InQueue for the engine loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		// Per-second packet rate limiter
		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("packet rate exceeded, dropping connection", zap.Int("pps", s.pktCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. The readLoop
		// goroutine is per-session, so blocking here only stalls this client.
		select {
		case s.InQueue <- payload:
			if s.wake != nil {
				s.wake()
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It reads packets from OutQueue and
// writes them as framed data to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeOnePacket writes a single framed packet to the TCP socket.
// Returns true on success.
func (s *Session) writeOnePacket(data []byte) bool {
	if len(data) > 0 {
		s.log.Debug("TX",
			zap.String("op", fmt.Sprintf("0x%02X", data[0])),
			zap.Int("len", len(data)),
		)
	}

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
