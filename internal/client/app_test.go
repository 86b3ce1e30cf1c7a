package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/protocol"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	return NewApp(config.ClientConfig{ServerURL: "ws://127.0.0.1:1/ws", CommandPrefix: "/"})
}

// joinedApp returns an app that believes it is connected and inside room 7.
func joinedApp(t *testing.T) *App {
	t.Helper()
	a := newTestApp(t)
	a.session = NewSession(a.serverAddr)
	a.statusOnline = true
	a.user, a.email, a.room = "alice", "a@x", "7"
	a.joined = true
	return a
}

func deliver(t *testing.T, a *App, event protocol.EventName, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(t, err)
	a.handleSessionEnvelope(env)
}

func TestLoadMessageReplacesHistoryAndKeepsNotices(t *testing.T) {
	a := joinedApp(t)
	a.joined = false
	a.chatHistory = []chatEntry{{id: "stale", line: "old"}, {line: "* welcome"}}

	deliver(t, a, protocol.EventLoadMessage, []protocol.ChatMessage{
		{ID: "m1", User: "bob", Room: "7", Message: "hi"},
		{ID: "m2", User: "alice", Room: "7", Message: "hey"},
	})

	require.Len(t, a.chatHistory, 3)
	assert.Equal(t, "m1", a.chatHistory[0].id)
	assert.Equal(t, "m2", a.chatHistory[1].id)
	assert.Equal(t, "* welcome", a.chatHistory[2].line)
	assert.True(t, a.joined)
	assert.Equal(t, viewChat, a.view)
}

func TestBroadcastNoticeIsPlainText(t *testing.T) {
	a := joinedApp(t)
	deliver(t, a, protocol.EventBroadcastMessage, protocol.Notice{Message: "<strong>bob &amp; co</strong> is joined"})

	require.Len(t, a.chatHistory, 1)
	assert.Empty(t, a.chatHistory[0].id)
	assert.Contains(t, a.chatHistory[0].line, "bob & co is joined")
}

func TestBroadcastChatMessageAndDelete(t *testing.T) {
	a := joinedApp(t)
	deliver(t, a, protocol.EventBroadcastMessage, protocol.ChatMessage{
		ID: "0123456789", User: "bob", Room: "7", Message: "hello",
		CreateAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	deliver(t, a, protocol.EventBroadcastMessage, protocol.ChatMessage{ID: "abcdef", User: "bob", Room: "7", Message: "second"})

	require.Len(t, a.chatHistory, 2)
	assert.Contains(t, a.chatHistory[0].line, "[#01234567]")
	assert.Contains(t, a.chatHistory[0].line, "bob: hello")

	deliver(t, a, protocol.EventMessageDeleted, protocol.MessageDeleted{ID: "0123456789"})
	require.Len(t, a.chatHistory, 1)
	assert.Equal(t, "abcdef", a.chatHistory[0].id)
}

func TestOnlineUserTracksOwnRecord(t *testing.T) {
	a := joinedApp(t)
	deliver(t, a, protocol.EventOnlineUser, protocol.OnlineUser{ID: "u-bob", User: "bob", Email: "b@x", Room: "7"})
	deliver(t, a, protocol.EventOnlineUser, protocol.OnlineUser{ID: "u-alice", User: "alice", Email: "a@x", Room: "7"})

	assert.Len(t, a.roster, 2)
	assert.Equal(t, "u-alice", a.onlineID)

	deliver(t, a, protocol.EventLogoutUser, protocol.LogoutNotice{ID: "u-bob"})
	assert.Len(t, a.roster, 1)
	assert.True(t, a.joined)

	deliver(t, a, protocol.EventLogoutUser, protocol.LogoutNotice{ID: "u-alice", User: "alice", Room: "7", Email: "a@x"})
	assert.False(t, a.joined)
	assert.Empty(t, a.onlineID)
}

func TestTypingUpdateLine(t *testing.T) {
	a := joinedApp(t)
	assert.Empty(t, a.typingLine())

	deliver(t, a, protocol.EventTypingUpdate, protocol.TypingUpdate{User: "carol", Typing: true})
	assert.Equal(t, "carol is typing...", a.typingLine())

	deliver(t, a, protocol.EventTypingUpdate, protocol.TypingUpdate{User: "bob", Typing: true})
	assert.Equal(t, "bob, carol are typing...", a.typingLine())

	deliver(t, a, protocol.EventTypingUpdate, protocol.TypingUpdate{User: "carol", Typing: false})
	assert.Equal(t, "bob is typing...", a.typingLine())
}

func TestUserUpdateFailureLogsError(t *testing.T) {
	a := joinedApp(t)
	a.joined = false
	deliver(t, a, protocol.EventUserUpdate, protocol.UserUpdate{Status: false})
	assert.Equal(t, logLevelError, a.logLine.level)
	assert.Contains(t, a.logLine.body, "/profile")
}

func TestEnvelopesRecordedInPipe(t *testing.T) {
	a := joinedApp(t)
	deliver(t, a, protocol.EventTypingUpdate, protocol.TypingUpdate{User: "bob", Typing: true})
	require.Len(t, a.pipeHistory, 1)
	assert.Equal(t, pipeDirectionIn, a.pipeHistory[0].direction)
	assert.Equal(t, string(protocol.EventTypingUpdate), a.pipeHistory[0].event)
	assert.Contains(t, a.pipeHistory[0].body, `"typing_update"`)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "bob is joined", plainText("<strong>bob</strong> is joined"))
	assert.Equal(t, "a <b> c", plainText("a &lt;b&gt; c"))
	assert.Equal(t, "Welcome to the server room 7 alice", plainText("Welcome to the server room 7 alice"))
}
