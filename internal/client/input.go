package client

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenggwsx/RoomChat/internal/protocol"
)

// handleTabCompletion extends a partially typed command to the longest
// unambiguous trigger. A unique match also gets a trailing space. It reports
// whether the input changed.
func (a *App) handleTabCompletion() bool {
	value := a.input.Value()
	if a.input.Position() != utf8.RuneCountInString(value) {
		return false
	}
	if !strings.HasPrefix(value, a.cfg.CommandPrefix) || strings.ContainsAny(value, " \t") {
		return false
	}

	candidates := a.commandsWithPrefix(value)
	completion := longestCommonPrefix(candidates)
	if len(candidates) == 1 {
		completion += " "
	}
	if len(completion) <= len(value) {
		return false
	}
	a.input.SetValue(completion)
	a.input.CursorEnd()
	return true
}

func (a *App) commandsWithPrefix(prefix string) []string {
	var triggers []string
	for _, c := range a.commands {
		if strings.HasPrefix(c.trigger, prefix) {
			triggers = append(triggers, c.trigger)
		}
	}
	return triggers
}

func longestCommonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	n := len(values[0])
	for _, v := range values[1:] {
		n = min(n, len(v))
		for i := 0; i < n; i++ {
			if v[i] != values[0][i] {
				n = i
				break
			}
		}
	}
	return values[0][:n]
}

// syncTyping emits typing or stop_typing when the composed chat message
// becomes non-empty or empty again. Commands never count as typing.
func (a *App) syncTyping() tea.Cmd {
	if !a.joined || !a.isConnected() {
		a.typingSent = false
		return nil
	}
	value := a.input.Value()
	composing := value != "" && !strings.HasPrefix(value, a.cfg.CommandPrefix)
	if composing == a.typingSent {
		return nil
	}
	a.typingSent = composing

	event := protocol.EventStopTyping
	if composing {
		event = protocol.EventTyping
	}
	return a.sendEvent(event, protocol.TypingRequest{User: a.user, Room: protocol.RoomID(a.room)}, string(event))
}
