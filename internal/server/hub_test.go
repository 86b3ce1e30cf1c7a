package server

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(queue int) *clientSession {
	return newClientSession(nil, "test", queue, discardLogger())
}

func drain(s *clientSession) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env := <-s.sendCh:
			out = append(out, env)
		default:
			return out
		}
	}
}

func testEnvelope(t *testing.T, event protocol.EventName) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(event, protocol.Notice{Message: string(event)})
	require.NoError(t, err)
	return env
}

func TestRoomHub_BroadcastRoom(t *testing.T) {
	tests := []struct {
		name     string
		except   func(sender *clientSession) string
		wantSelf int
	}{
		{name: "excluding sender", except: func(s *clientSession) string { return s.id }, wantSelf: 0},
		{name: "including sender", except: func(*clientSession) string { return "" }, wantSelf: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewRoomHub()
			sender, peer, outsider := newTestSession(4), newTestSession(4), newTestSession(4)
			for _, s := range []*clientSession{sender, peer, outsider} {
				hub.Register(s)
			}
			hub.Join("7", sender)
			hub.Join("7", peer)
			hub.Join("8", outsider)

			hub.BroadcastRoom("7", testEnvelope(t, protocol.EventBroadcastMessage), tt.except(sender))

			assert.Len(t, drain(sender), tt.wantSelf)
			assert.Len(t, drain(peer), 1)
			assert.Empty(t, drain(outsider))
		})
	}
}

func TestRoomHub_BroadcastAllReachesSessionsOutsideRooms(t *testing.T) {
	hub := NewRoomHub()
	joined, idle := newTestSession(4), newTestSession(4)
	hub.Register(joined)
	hub.Register(idle)
	hub.Join("1", joined)

	assert.Equal(t, 2, hub.BroadcastAll(testEnvelope(t, protocol.EventOnlineUser)))
	assert.Len(t, drain(joined), 1)
	assert.Len(t, drain(idle), 1)
}

func TestRoomHub_JoinLeavesPreviousRoom(t *testing.T) {
	hub := NewRoomHub()
	s := newTestSession(4)
	hub.Register(s)

	hub.Join("1", s)
	hub.Join("2", s)

	room, ok := hub.roomOf(s.id)
	require.True(t, ok)
	assert.Equal(t, "2", room)
	assert.Equal(t, 0, hub.members("1"))
	assert.Equal(t, 1, hub.members("2"))

	_, rooms := hub.Stats()
	assert.Equal(t, 1, rooms)
}

func TestRoomHub_UnregisterEvictsEmptyRoom(t *testing.T) {
	hub := NewRoomHub()
	s := newTestSession(4)
	hub.Register(s)
	hub.Join("1", s)

	hub.Unregister(s.id)

	sessions, rooms := hub.Stats()
	assert.Zero(t, sessions)
	assert.Zero(t, rooms)
	_, ok := hub.Leave(s.id)
	assert.False(t, ok)
}

func TestSessionEnqueueDropsWhenFullOrClosed(t *testing.T) {
	s := newTestSession(1)
	assert.True(t, s.enqueue(testEnvelope(t, protocol.EventTypingUpdate)))
	assert.False(t, s.enqueue(testEnvelope(t, protocol.EventTypingUpdate)))

	drain(s)
	s.shutdown()
	s.shutdown()
	assert.False(t, s.enqueue(testEnvelope(t, protocol.EventTypingUpdate)))
}

func TestSessionStateTransitions(t *testing.T) {
	s := newTestSession(1)
	state, _ := s.snapshot()
	assert.Equal(t, stateConnected, state)

	require.True(t, s.enterRoom(identity{user: "alice", room: "7"}))
	assert.False(t, s.enterRoom(identity{user: "bob", room: "8"}))

	prev, ident := s.markClosed()
	assert.Equal(t, stateInRoom, prev)
	assert.Equal(t, "alice", ident.user)

	state, ident = s.snapshot()
	assert.Equal(t, stateClosed, state)
	assert.Equal(t, "7", ident.room)
	assert.False(t, s.enterRoom(identity{user: "carol"}))
}
