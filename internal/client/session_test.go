package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

// newEchoServer answers every inbound envelope with a typing_update that
// names the inbound event.
func newEchoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			reply, err := protocol.NewEnvelope(protocol.EventTypingUpdate, protocol.TypingUpdate{User: string(env.Event), Typing: true})
			if err != nil {
				return
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionRoundTrip(t *testing.T) {
	session := NewSession(newEchoServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, session.Connect(ctx))
	defer session.Close()

	env, err := protocol.NewEnvelope(protocol.EventLogout, protocol.LogoutRequest{Room: "7"})
	require.NoError(t, err)
	require.NoError(t, session.Send(ctx, env))

	select {
	case got, ok := <-session.Messages():
		require.True(t, ok)
		assert.Equal(t, protocol.EventTypingUpdate, got.Event)
		update, err := protocol.DecodePayload[protocol.TypingUpdate](got.Data)
		require.NoError(t, err)
		assert.Equal(t, string(protocol.EventLogout), update.User)
	case <-ctx.Done():
		t.Fatal("no reply from server")
	}
}

func TestSessionSendFillsEnvelopeMetadata(t *testing.T) {
	session := NewSession(newEchoServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, session.Connect(ctx))
	defer session.Close()

	require.NoError(t, session.Send(ctx, protocol.Envelope{Event: protocol.EventStopTyping}))
	select {
	case got := <-session.Messages():
		assert.NotEmpty(t, got.ID)
		assert.False(t, got.Timestamp.IsZero())
	case <-ctx.Done():
		t.Fatal("no reply from server")
	}
}

func TestSessionMessagesClosedAfterClose(t *testing.T) {
	session := NewSession(newEchoServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, session.Connect(ctx))

	require.NoError(t, session.Close())
	assert.NoError(t, session.Close(), "second close is a no-op")

	select {
	case _, ok := <-session.Messages():
		assert.False(t, ok)
	case <-ctx.Done():
		t.Fatal("messages channel not closed")
	}
}

func TestSessionSendBeforeConnect(t *testing.T) {
	session := NewSession("ws://127.0.0.1:1/ws")
	err := session.Send(context.Background(), protocol.Envelope{Event: protocol.EventLogout})
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, session.Close())
}

func TestSessionConnectFailure(t *testing.T) {
	session := NewSession("ws://127.0.0.1:1/ws")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, session.Connect(ctx))
}
