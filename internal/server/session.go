package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

type sessionState int

const (
	stateConnected sessionState = iota
	stateInRoom
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateInRoom:
		return "in_room"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// identity is captured when a join succeeds and kept for the rest of the
// connection, including after the session closes.
type identity struct {
	id           string
	user         string
	email        string
	room         string
	profilePhoto string
}

// clientSession tracks per-connection state and outbound delivery.
type clientSession struct {
	id     string
	conn   *websocket.Conn
	remote string
	logger *slog.Logger

	sendCh   chan protocol.Envelope
	done     chan struct{}
	doneOnce sync.Once

	mu    sync.Mutex
	state sessionState
	ident identity
}

func newClientSession(conn *websocket.Conn, remote string, queueSize int, logger *slog.Logger) *clientSession {
	id := uuid.NewString()
	return &clientSession{
		id:     id,
		conn:   conn,
		remote: remote,
		logger: logger.With("session", id, "remote", remote),
		sendCh: make(chan protocol.Envelope, queueSize),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks. A full queue drops the envelope for this recipient.
func (s *clientSession) enqueue(env protocol.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.sendCh <- env:
		return true
	default:
		s.logger.Warn("send queue full, dropping event", "event", env.Event)
		return false
	}
}

// snapshot returns the current state and identity.
func (s *clientSession) snapshot() (sessionState, identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.ident
}

// enterRoom moves a connected session into a room. It reports false when the
// session is not in the connected state.
func (s *clientSession) enterRoom(ident identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return false
	}
	s.state = stateInRoom
	s.ident = ident
	return true
}

// markClosed moves the session to the terminal state and returns the prior one.
func (s *clientSession) markClosed() (sessionState, identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = stateClosed
	return prev, s.ident
}

// shutdown stops the write loop. Safe to call more than once.
func (s *clientSession) shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *clientSession) writeLoop(ctx context.Context, writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.shutdown()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Debug("close connection", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(writeTimeout, websocket.CloseGoingAway)
			return
		case <-s.done:
			s.flush(writeTimeout)
			s.writeClose(writeTimeout, websocket.CloseNormalClosure)
			return
		case env := <-s.sendCh:
			if err := s.write(env, writeTimeout); err != nil {
				s.logger.Debug("write event", "event", env.Event, "err", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("write ping", "err", err)
				return
			}
		}
	}
}

func (s *clientSession) write(env protocol.Envelope, writeTimeout time.Duration) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// flush writes whatever is already queued.
func (s *clientSession) flush(writeTimeout time.Duration) {
	for {
		select {
		case env := <-s.sendCh:
			if err := s.write(env, writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *clientSession) writeClose(writeTimeout time.Duration, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("write close", "err", err)
	}
}
