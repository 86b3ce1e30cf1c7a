package client

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func (a *App) handleSessionEnvelope(env protocol.Envelope) {
	a.appendPipeEntry(pipeDirectionIn, env)
	switch env.Event {
	case protocol.EventUserUpdate:
		a.handleUserUpdate(env)
	case protocol.EventBroadcastMessage:
		a.handleBroadcastMessage(env)
	case protocol.EventLoadMessage:
		a.handleLoadMessage(env)
	case protocol.EventOnlineUser:
		a.handleOnlineUser(env)
	case protocol.EventLogoutUser:
		a.handleLogoutUser(env)
	case protocol.EventMessageDeleted:
		a.handleMessageDeleted(env)
	case protocol.EventTypingUpdate:
		a.handleTypingUpdate(env)
	default:
		a.logErrorf("Received %s event", env.Event)
	}
	a.updateViewportContent()
}

func (a *App) handleUserUpdate(env protocol.Envelope) {
	update, err := protocol.DecodePayload[protocol.UserUpdate](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode user update: %v", err)
		return
	}
	if !update.Status {
		a.logErrorf("No online record for %s in room %s; use %sprofile to create one", a.user, a.room, a.cfg.CommandPrefix)
		return
	}
	a.logf("Join accepted for %s", a.user)
}

func (a *App) handleBroadcastMessage(env protocol.Envelope) {
	msg, err := protocol.DecodePayload[protocol.ChatMessage](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode message: %v", err)
		return
	}
	if msg.ID == "" {
		a.appendChatEntry(chatEntry{line: a.styles.notice.Render("* " + plainText(msg.Message))})
		return
	}
	a.appendChatEntry(chatEntry{id: msg.ID, line: formatChatMessage(msg)})
}

func (a *App) handleLoadMessage(env protocol.Envelope) {
	history, err := protocol.DecodePayload[[]protocol.ChatMessage](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode chat history: %v", err)
		return
	}
	notices := make([]chatEntry, 0, len(a.chatHistory))
	for _, entry := range a.chatHistory {
		if entry.id == "" {
			notices = append(notices, entry)
		}
	}
	a.chatHistory = make([]chatEntry, 0, len(history)+len(notices))
	for _, msg := range history {
		a.chatHistory = append(a.chatHistory, chatEntry{id: msg.ID, line: formatChatMessage(msg)})
	}
	a.chatHistory = append(a.chatHistory, notices...)
	a.joined = true
	a.view = viewChat
	a.logf("Loaded %d messages for room %s", len(history), a.room)
}

func (a *App) handleOnlineUser(env protocol.Envelope) {
	user, err := protocol.DecodePayload[protocol.OnlineUser](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode online user: %v", err)
		return
	}
	a.roster[user.ID] = user
	if user.Email == a.email && user.User == a.user && user.Room == a.room {
		a.onlineID = user.ID
	}
}

func (a *App) handleLogoutUser(env protocol.Envelope) {
	notice, err := protocol.DecodePayload[protocol.LogoutNotice](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode logout: %v", err)
		return
	}
	delete(a.roster, notice.ID)
	if notice.ID != "" && notice.ID == a.onlineID {
		a.leaveRoom()
		a.logf("Left room %s; reconnect to join again", a.room)
	}
}

func (a *App) handleMessageDeleted(env protocol.Envelope) {
	deleted, err := protocol.DecodePayload[protocol.MessageDeleted](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode delete: %v", err)
		return
	}
	kept := a.chatHistory[:0]
	for _, entry := range a.chatHistory {
		if entry.id != deleted.ID {
			kept = append(kept, entry)
		}
	}
	a.chatHistory = kept
}

func (a *App) handleTypingUpdate(env protocol.Envelope) {
	update, err := protocol.DecodePayload[protocol.TypingUpdate](env.Data)
	if err != nil {
		a.logErrorf("Failed to decode typing update: %v", err)
		return
	}
	if update.Typing {
		a.typingUsers[update.User] = struct{}{}
	} else {
		delete(a.typingUsers, update.User)
	}
}

func (a *App) appendChatEntry(entry chatEntry) {
	if strings.TrimSpace(entry.line) == "" {
		return
	}
	if len(a.chatHistory) >= chatHistoryLimit {
		a.chatHistory = append(a.chatHistory[1:], entry)
		return
	}
	a.chatHistory = append(a.chatHistory, entry)
}

func (a *App) typingLine() string {
	if len(a.typingUsers) == 0 {
		return ""
	}
	users := make([]string, 0, len(a.typingUsers))
	for user := range a.typingUsers {
		users = append(users, user)
	}
	sort.Strings(users)
	verb := "is"
	if len(users) > 1 {
		verb = "are"
	}
	return fmt.Sprintf("%s %s typing...", strings.Join(users, ", "), verb)
}

func formatChatMessage(msg protocol.ChatMessage) string {
	user := strings.TrimSpace(msg.User)
	if user == "" {
		user = "unknown"
	}
	id := msg.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if msg.CreateAt.IsZero() {
		return fmt.Sprintf("[#%s] %s: %s", id, user, msg.Message)
	}
	return fmt.Sprintf("[#%s] [%s] %s: %s", id, msg.CreateAt.Local().Format("15:04:05"), user, msg.Message)
}

// plainText strips markup from server notices.
func plainText(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}
