package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

var errNotConnected = errors.New("session not connected")

// Session manages client-side websocket interactions with the RoomChat server.
type Session struct {
	url      string
	conn     *websocket.Conn
	incoming chan protocol.Envelope
	done     chan struct{}
	writeMu  sync.Mutex
	closeMu  sync.Once
}

// NewSession initializes a session for the websocket URL.
func NewSession(url string) *Session {
	return &Session{
		url:      url,
		incoming: make(chan protocol.Envelope, 64),
		done:     make(chan struct{}),
	}
}

// Connect dials the server and starts reading events.
func (s *Session) Connect(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}
	s.conn = conn
	go s.readLoop()
	return nil
}

// Messages delivers inbound envelopes. The channel closes when the connection ends.
func (s *Session) Messages() <-chan protocol.Envelope {
	return s.incoming
}

// Send dispatches an envelope to the server.
func (s *Session) Send(ctx context.Context, env protocol.Envelope) error {
	if s.conn == nil {
		return errNotConnected
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return s.conn.WriteJSON(env)
}

// Close terminates the session.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	var err error
	s.closeMu.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop() {
	defer close(s.incoming)
	for {
		var env protocol.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case s.incoming <- env:
		case <-s.done:
			return
		}
	}
}
