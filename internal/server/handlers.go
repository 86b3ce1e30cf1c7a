package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fenggwsx/RoomChat/internal/protocol"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

var (
	errEmptyMessage    = errors.New("message body empty")
	errMissingIdentity = errors.New("user, email and room are required")
)

// dispatch routes one inbound envelope. Handler errors stop at this boundary:
// they are logged and never reported to the client.
func (a *App) dispatch(ctx context.Context, s *clientSession, env protocol.Envelope) {
	if state, _ := s.snapshot(); state == stateClosed {
		s.logger.Debug("event after close ignored", "event", env.Event)
		return
	}

	var err error
	switch env.Event {
	case protocol.EventJoin:
		err = a.handleJoin(ctx, s, env)
	case protocol.EventJoinWithProfile, protocol.EventJoinWithProfileV0:
		err = a.handleJoinWithProfile(ctx, s, env)
	case protocol.EventDeleteAccount:
		err = a.handleDeleteAccount(ctx, s, env)
	case protocol.EventLogout:
		err = a.handleLogout(ctx, s, env)
	case protocol.EventDeleteMessage:
		err = a.handleDeleteMessage(ctx, s, env)
	case protocol.EventUserMessage:
		err = a.handleUserMessage(ctx, s, env)
	case protocol.EventTyping:
		err = a.handleTyping(ctx, s, env, true)
	case protocol.EventStopTyping:
		err = a.handleTyping(ctx, s, env, false)
	default:
		s.logger.Warn("unhandled event", "event", env.Event)
		return
	}
	if err != nil {
		s.logger.Error("handle event", "event", env.Event, "err", err)
	}
}

func (a *App) handleJoin(ctx context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.JoinRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode join: %w", err)
	}
	if state, _ := s.snapshot(); state != stateConnected {
		s.logger.Warn("join ignored, session already in a room")
		return nil
	}

	record, err := a.presence.FindOnlineUser(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.User), req.Room.String())
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("join rejected, no online user", "user", req.User, "room", req.Room)
		a.unicast(s, protocol.EventUserUpdate, protocol.UserUpdate{Status: false})
		return nil
	}
	if err != nil {
		return fmt.Errorf("find online user: %w", err)
	}
	return a.admit(ctx, s, *record, true)
}

func (a *App) handleJoinWithProfile(ctx context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.ProfileJoinRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode profile join: %w", err)
	}
	if state, _ := s.snapshot(); state != stateConnected {
		s.logger.Warn("profile join ignored, session already in a room")
		return nil
	}
	record := storage.OnlineUser{
		User:         strings.TrimSpace(req.User),
		Email:        strings.TrimSpace(req.Email),
		Room:         req.Room.String(),
		ProfilePhoto: req.ProfilePhoto,
	}
	if record.User == "" || record.Email == "" || record.Room == "" {
		return errMissingIdentity
	}
	if err := a.presence.CreateOnlineUser(ctx, &record); err != nil {
		return fmt.Errorf("create online user: %w", err)
	}
	return a.admit(ctx, s, record, false)
}

// admit runs the shared tail of both join paths. History is fetched before
// anything is emitted so a store failure leaves the session untouched.
func (a *App) admit(ctx context.Context, s *clientSession, record storage.OnlineUser, ack bool) error {
	history, err := a.messages.ListMessagesByRoom(ctx, record.Room, a.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	ident := identity{
		id:           record.ID,
		user:         record.User,
		email:        record.Email,
		room:         record.Room,
		profilePhoto: record.ProfilePhoto,
	}
	if !s.enterRoom(ident) {
		return nil
	}

	if ack {
		a.unicast(s, protocol.EventUserUpdate, protocol.UserUpdate{Status: true})
	}
	a.unicast(s, protocol.EventBroadcastMessage, welcomeNotice(ident.room, ident.user, ident.profilePhoto))
	a.broadcastRoom(ident.room, protocol.EventBroadcastMessage, joinedNotice(ident.user, ident.profilePhoto), s.id)
	a.broadcastAll(protocol.EventOnlineUser, toProtocolOnlineUser(record))

	replay := make([]protocol.ChatMessage, 0, len(history))
	for _, msg := range history {
		replay = append(replay, toProtocolChatMessage(msg))
	}
	a.unicast(s, protocol.EventLoadMessage, replay)

	a.hub.Join(ident.room, s)
	s.logger.Info("session joined room", "user", ident.user, "room", ident.room, "history", len(replay))
	return nil
}

func (a *App) handleDeleteAccount(ctx context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.DeleteAccountRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode delete account: %w", err)
	}
	room := req.Room.String()

	if err := a.presence.DeleteOnlineUser(ctx, req.ID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete online user: %w", err)
		}
		s.logger.Warn("delete account: online user already gone", "id", req.ID)
	}
	removed, err := a.messages.DeleteMessagesByAuthor(ctx, req.User, room, req.Email)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	a.leave(s)
	a.broadcastAll(protocol.EventLogoutUser, protocol.LogoutNotice{
		ID:    req.ID,
		User:  req.User,
		Room:  room,
		Email: req.Email,
	})
	s.logger.Info("account deleted", "user", req.User, "room", room, "messages", removed)
	return nil
}

func (a *App) handleLogout(_ context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.LogoutRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode logout: %w", err)
	}
	state, ident := s.snapshot()
	if state != stateInRoom {
		s.logger.Warn("logout ignored, session not in a room")
		return nil
	}
	if req.Room != "" && req.Room.String() != ident.room {
		s.logger.Warn("logout room differs from session room", "room", req.Room, "session_room", ident.room)
	}

	a.leave(s)
	a.broadcastAll(protocol.EventLogoutUser, protocol.LogoutNotice{
		ID:    ident.id,
		User:  ident.user,
		Room:  ident.room,
		Email: ident.email,
	})
	s.logger.Info("session logged out", "user", ident.user, "room", ident.room)
	return nil
}

// leave removes the session from its room, clears its typing flag and closes it.
func (a *App) leave(s *clientSession) {
	prev, ident := s.markClosed()
	a.hub.Leave(s.id)
	if prev == stateInRoom && a.typing.Stop(ident.room, ident.user) {
		a.broadcastRoom(ident.room, protocol.EventTypingUpdate, protocol.TypingUpdate{User: ident.user, Typing: false}, s.id)
	}
}

func (a *App) handleDeleteMessage(ctx context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.DeleteMessageRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode delete: %w", err)
	}
	if err := a.messages.DeleteMessage(ctx, req.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("delete: message not found", "id", req.ID)
			return nil
		}
		return fmt.Errorf("delete message: %w", err)
	}
	a.broadcastAll(protocol.EventMessageDeleted, protocol.MessageDeleted{ID: req.ID})
	s.logger.Info("chat message deleted", "id", req.ID)
	return nil
}

func (a *App) handleUserMessage(ctx context.Context, s *clientSession, env protocol.Envelope) error {
	req, err := protocol.DecodePayload[protocol.UserMessageRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode user message: %w", err)
	}
	state, ident := s.snapshot()
	if state != stateInRoom {
		s.logger.Warn("message ignored, session not in a room")
		return nil
	}
	if req.Room != "" && req.Room.String() != ident.room {
		s.logger.Warn("message ignored, room mismatch", "room", req.Room, "session_room", ident.room)
		return nil
	}
	if user := strings.TrimSpace(req.User); user != "" && user != ident.user {
		s.logger.Warn("message ignored, user mismatch", "user", user, "session_user", ident.user)
		return nil
	}
	if strings.TrimSpace(req.Message) == "" {
		return errEmptyMessage
	}

	msg := storage.Message{
		User:         ident.user,
		Room:         ident.room,
		Email:        ident.email,
		Body:         req.Message,
		ProfilePhoto: ident.profilePhoto,
	}
	if err := a.messages.SaveMessage(ctx, &msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	a.broadcastRoom(ident.room, protocol.EventBroadcastMessage, toProtocolChatMessage(msg), "")
	s.logger.Info("chat message stored", "id", msg.ID, "room", msg.Room, "user", msg.User)
	return nil
}

func (a *App) handleTyping(_ context.Context, s *clientSession, env protocol.Envelope, typing bool) error {
	req, err := protocol.DecodePayload[protocol.TypingRequest](env.Data)
	if err != nil {
		return fmt.Errorf("decode typing: %w", err)
	}
	state, ident := s.snapshot()
	if state != stateInRoom {
		s.logger.Warn("typing ignored, session not in a room", "event", env.Event)
		return nil
	}
	if req.Room != "" && req.Room.String() != ident.room {
		s.logger.Warn("typing ignored, room mismatch", "room", req.Room, "session_room", ident.room)
		return nil
	}
	if user := strings.TrimSpace(req.User); user != "" && user != ident.user {
		s.logger.Warn("typing ignored, user mismatch", "user", user, "session_user", ident.user)
		return nil
	}

	if typing {
		a.typing.Start(ident.room, ident.user)
	} else {
		a.typing.Stop(ident.room, ident.user)
	}
	a.broadcastRoom(ident.room, protocol.EventTypingUpdate, protocol.TypingUpdate{User: ident.user, Typing: typing}, s.id)
	return nil
}

// handleDisconnect runs once the read loop ends.
func (a *App) handleDisconnect(s *clientSession) {
	prev, ident := s.markClosed()
	a.hub.Unregister(s.id)
	if prev != stateInRoom {
		s.logger.Info("session disconnected", "state", prev)
		return
	}

	if a.typing.Stop(ident.room, ident.user) {
		a.broadcastRoom(ident.room, protocol.EventTypingUpdate, protocol.TypingUpdate{User: ident.user, Typing: false}, s.id)
	}
	a.broadcastRoom(ident.room, protocol.EventBroadcastMessage, logoutNotice(ident.user, ident.profilePhoto), s.id)
	a.broadcastAll(protocol.EventLogoutUser, protocol.LogoutNotice{ID: ident.id})
	s.logger.Info("session disconnected", "user", ident.user, "room", ident.room)
}
