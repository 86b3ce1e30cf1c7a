package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

const sendTimeout = 5 * time.Second

func (a *App) handleSubmit(value string) tea.Cmd {
	if strings.HasPrefix(value, a.cfg.CommandPrefix) {
		return a.executeCommand(value)
	}
	return a.sendChatMessage(value)
}

func (a *App) executeCommand(raw string) tea.Cmd {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	name := strings.TrimPrefix(strings.ToLower(fields[0]), a.cfg.CommandPrefix)
	args := fields[1:]

	var cmd tea.Cmd
	switch name {
	case "connect":
		target := a.serverAddr
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" {
			a.logErrorf("Provide a server URL to connect")
			break
		}
		cmd = a.connectToServer(target)
	case "join":
		if len(args) < 3 {
			a.logErrorf("Usage: %sjoin <room> <user> <email>", a.cfg.CommandPrefix)
			break
		}
		cmd = a.sendJoin(protocol.EventJoin, args[0], args[1], args[2], "")
	case "profile":
		if len(args) < 4 {
			a.logErrorf("Usage: %sprofile <room> <user> <email> <photo>", a.cfg.CommandPrefix)
			break
		}
		cmd = a.sendJoin(protocol.EventJoinWithProfile, args[0], args[1], args[2], strings.Join(args[3:], " "))
	case "logout":
		if !a.requireRoom() {
			break
		}
		a.logf("Leaving room %s ...", a.room)
		cmd = a.sendEvent(protocol.EventLogout, protocol.LogoutRequest{Room: protocol.RoomID(a.room)}, "logout")
	case "delete":
		if len(args) < 1 {
			a.logErrorf("Usage: %sdelete <message_id>", a.cfg.CommandPrefix)
			break
		}
		if !a.requireConnection() {
			break
		}
		id, ok := a.resolveMessageID(args[0])
		if !ok {
			a.logErrorf("No message matches %s", args[0])
			break
		}
		cmd = a.sendEvent(protocol.EventDeleteMessage, protocol.DeleteMessageRequest{ID: id}, "delete")
	case "deleteaccount":
		if !a.requireRoom() {
			break
		}
		if a.onlineID == "" {
			a.logErrorf("Online record id unknown; wait for the roster to load")
			break
		}
		a.logf("Deleting account %s in room %s ...", a.user, a.room)
		cmd = a.sendEvent(protocol.EventDeleteAccount, protocol.DeleteAccountRequest{
			ID:    a.onlineID,
			User:  a.user,
			Room:  protocol.RoomID(a.room),
			Email: a.email,
		}, "delete account")
	case "chat":
		a.view = viewChat
		a.logf("Switched to CHAT view")
	case "users":
		a.view = viewUsers
		a.logf("Switched to USERS view")
	case "help":
		a.view = viewHelp
		a.logf("Switched to HELP view")
	case "pipe":
		if len(args) > 0 && strings.EqualFold(args[0], "clear") {
			a.pipeHistory = a.pipeHistory[:0]
			a.logf("Cleared pipe history")
			break
		}
		a.view = viewPipe
		a.logf("Switched to PIPE view")
	case "quit", "exit":
		a.logf("Exiting client")
		if a.session != nil {
			_ = a.session.Close()
		}
		a.resetConnection()
		cmd = tea.Quit
	default:
		a.logErrorf("Unknown command %s", fields[0])
	}

	a.updateViewportContent()
	return cmd
}

func (a *App) requireConnection() bool {
	if !a.isConnected() {
		a.logErrorf("Not connected. Use %sconnect first.", a.cfg.CommandPrefix)
		return false
	}
	return true
}

func (a *App) requireRoom() bool {
	if !a.requireConnection() {
		return false
	}
	if !a.joined {
		a.logErrorf("Join a room first")
		return false
	}
	return true
}

// resolveMessageID accepts a full id or a unique prefix of a known message id.
func (a *App) resolveMessageID(prefix string) (string, bool) {
	prefix = strings.TrimPrefix(prefix, "#")
	match := ""
	for _, entry := range a.chatHistory {
		if entry.id == "" || !strings.HasPrefix(entry.id, prefix) {
			continue
		}
		if match != "" && match != entry.id {
			return "", false
		}
		match = entry.id
	}
	return match, match != ""
}

func (a *App) connectToServer(target string) tea.Cmd {
	if a.session != nil {
		_ = a.session.Close()
	}
	session := NewSession(target)
	a.session = session
	a.serverAddr = target
	a.statusOnline = false
	a.leaveRoom()
	a.logf("Connecting to %s ...", target)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return connectResultMsg{session: session, address: target, err: session.Connect(ctx)}
	}
}

func (a *App) listenForSession() tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-session.Messages()
		if !ok {
			return sessionClosedMsg{session: session}
		}
		return sessionEnvelopeMsg{session: session, envelope: env}
	}
}

func (a *App) sendJoin(event protocol.EventName, room, user, email, photo string) tea.Cmd {
	if !a.requireConnection() {
		return nil
	}
	if a.joined {
		a.logErrorf("Already in room %s; reconnect to switch rooms", a.room)
		return nil
	}
	a.room = room
	a.user = user
	a.email = email
	a.profilePhoto = photo
	a.logf("Joining room %s as %s ...", room, user)

	if event == protocol.EventJoinWithProfile {
		return a.sendEvent(event, protocol.ProfileJoinRequest{
			User:         user,
			Email:        email,
			Room:         protocol.RoomID(room),
			ProfilePhoto: photo,
		}, "profile join")
	}
	return a.sendEvent(event, protocol.JoinRequest{User: user, Email: email, Room: protocol.RoomID(room)}, "join")
}

func (a *App) sendChatMessage(content string) tea.Cmd {
	if !a.requireRoom() {
		return nil
	}
	return a.sendEvent(protocol.EventUserMessage, protocol.UserMessageRequest{
		Message: content,
		User:    a.user,
		Room:    protocol.RoomID(a.room),
	}, "chat message")
}

func (a *App) sendEvent(event protocol.EventName, payload any, description string) tea.Cmd {
	session := a.session
	if session == nil {
		return nil
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		a.logErrorf("Failed to encode %s: %v", description, err)
		return nil
	}
	a.appendPipeEntry(pipeDirectionOut, env)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return sendResultMsg{session: session, description: description, err: session.Send(ctx, env)}
	}
}

func (a *App) appendPipeEntry(direction pipeDirection, env protocol.Envelope) {
	body, err := json.MarshalIndent(env, "", "  ")
	entry := pipeEntry{
		direction: direction,
		event:     string(env.Event),
		timestamp: time.Now().Format("15:04:05.000"),
		body:      string(body),
	}
	if err != nil {
		entry.body = fmt.Sprintf(`{"marshal_error":%q}`, err.Error())
	}
	if len(a.pipeHistory) >= pipeHistoryLimit {
		a.pipeHistory = append(a.pipeHistory[1:], entry)
	} else {
		a.pipeHistory = append(a.pipeHistory, entry)
	}
	if a.view == viewPipe {
		a.updateViewportContent()
	}
}

func defaultCommands(prefix string) []commandSpec {
	specs := []commandSpec{
		{trigger: "connect", usage: "connect [url]", description: "Connect to the server"},
		{trigger: "join", usage: "join <room> <user> <email>", description: "Rejoin with an existing online record"},
		{trigger: "profile", usage: "profile <room> <user> <email> <photo>", description: "Create an online record and join"},
		{trigger: "logout", usage: "logout", description: "Leave the current room"},
		{trigger: "delete", usage: "delete <message_id>", description: "Delete a message by id or id prefix"},
		{trigger: "deleteaccount", usage: "deleteaccount", description: "Remove your online record and your messages in this room"},
		{trigger: "chat", usage: "chat", description: "Switch to chat view"},
		{trigger: "users", usage: "users", description: "Show online users"},
		{trigger: "help", usage: "help", description: "Show command help"},
		{trigger: "pipe", usage: "pipe [clear]", description: "Inspect transport JSON frames"},
		{trigger: "quit", usage: "quit", description: "Exit the client"},
	}
	for i := range specs {
		specs[i].trigger = prefix + specs[i].trigger
		specs[i].usage = prefix + specs[i].usage
	}
	return specs
}
