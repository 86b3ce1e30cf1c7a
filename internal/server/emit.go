package server

import (
	"fmt"
	"html"

	"github.com/fenggwsx/RoomChat/internal/protocol"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

func (a *App) envelope(event protocol.EventName, payload any) (protocol.Envelope, bool) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		a.logger.Error("encode event", "event", event, "err", err)
		return env, false
	}
	return env, true
}

// unicast queues an event for one session.
func (a *App) unicast(s *clientSession, event protocol.EventName, payload any) {
	if env, ok := a.envelope(event, payload); ok {
		s.enqueue(env)
	}
}

// broadcastRoom queues an event for every member of room except the session
// with id except. Pass an empty except to include the sender.
func (a *App) broadcastRoom(room string, event protocol.EventName, payload any, except string) {
	if env, ok := a.envelope(event, payload); ok {
		a.hub.BroadcastRoom(room, env, except)
	}
}

// broadcastAll queues an event for every connected session.
func (a *App) broadcastAll(event protocol.EventName, payload any) {
	if env, ok := a.envelope(event, payload); ok {
		a.hub.BroadcastAll(env)
	}
}

func welcomeNotice(room, user, photo string) protocol.Notice {
	return protocol.Notice{
		Message:      fmt.Sprintf("Welcome to the server room %s %s", html.EscapeString(room), html.EscapeString(user)),
		ProfilePhoto: photo,
	}
}

func joinedNotice(user, photo string) protocol.Notice {
	return protocol.Notice{
		Message:      fmt.Sprintf("<strong>%s</strong> is joined", html.EscapeString(user)),
		ProfilePhoto: photo,
	}
}

func logoutNotice(user, photo string) protocol.Notice {
	return protocol.Notice{
		Message:      fmt.Sprintf("<strong>%s</strong> has logout", html.EscapeString(user)),
		ProfilePhoto: photo,
	}
}

func toProtocolChatMessage(msg storage.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:           msg.ID,
		User:         msg.User,
		Room:         msg.Room,
		Email:        msg.Email,
		Message:      msg.Body,
		ProfilePhoto: msg.ProfilePhoto,
		CreateAt:     msg.CreatedAt,
	}
}

func toProtocolOnlineUser(user storage.OnlineUser) protocol.OnlineUser {
	return protocol.OnlineUser{
		ID:           user.ID,
		User:         user.User,
		Email:        user.Email,
		Room:         user.Room,
		ProfilePhoto: user.ProfilePhoto,
	}
}
