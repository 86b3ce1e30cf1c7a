package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"
)

const (
	minWrapWidth   = 10
	minViewport    = 3
	chromeRows     = 4 // typing line, input, log line, status bar
	emptyChatHint  = "No chat messages yet. Type and press Enter to send."
	emptyPipeHint  = "No transport frames captured yet. Send commands to populate this view or use %spipe clear to reset."
	emptyUsersHint = "No online users seen yet."
)

// View renders the full screen: viewport, optional command help, typing
// indicator, input, log line and status bar.
func (a *App) View() string {
	rows := []string{a.viewport.View()}
	if a.showHelp {
		rows = append(rows, a.styles.help.Render(a.helpView))
	}
	rows = append(rows,
		a.styles.typing.Render(a.typingLine()),
		a.input.View(),
		a.logLineView(),
		a.statusLine(),
	)
	return strings.Join(rows, "\n")
}

func (a *App) updateViewportContent() {
	switch a.view {
	case viewChat:
		a.viewport.SetContent(a.renderChatView())
		a.viewport.GotoBottom()
	case viewPipe:
		a.viewport.SetContent(a.renderPipeView())
		a.viewport.GotoBottom()
	case viewUsers:
		a.viewport.SetContent(a.renderUsersView())
		a.viewport.GotoTop()
	case viewHelp:
		a.viewport.SetContent(a.renderHelpView())
		a.viewport.GotoTop()
	}
}

func (a *App) contentWidth() int {
	if a.viewport.Width > 0 {
		return a.viewport.Width
	}
	return a.width
}

func (a *App) updateViewportSize() {
	if a.height == 0 {
		return
	}
	a.viewport.Width = a.width
	a.viewport.Height = max(a.height-chromeRows-a.helpHeight, minViewport)
}

func (a *App) updateInputWidth() {
	width := a.width
	if width <= 0 {
		width = 60
	}
	a.input.Width = max(width-lipgloss.Width(a.input.Prompt)-1, minWrapWidth)
}

// updateHelp shows the commands matching the first word of the input while
// it starts with the command prefix.
func (a *App) updateHelp() {
	value := a.input.Value()
	if !strings.HasPrefix(value, a.cfg.CommandPrefix) || value == "" {
		a.clearHelp()
		return
	}
	word, _, _ := strings.Cut(value, " ")
	bindings := a.matchingBindings(strings.TrimSpace(word))
	if len(bindings) == 0 {
		a.clearHelp()
		return
	}
	a.help.Width = a.width
	a.helpView = strings.TrimRight(a.help.FullHelpView([][]key.Binding{bindings}), "\n")
	a.showHelp = true
	a.setHelpHeight(countLines(a.helpView))
}

func (a *App) clearHelp() {
	a.showHelp = false
	a.helpView = ""
	a.setHelpHeight(0)
}

func (a *App) setHelpHeight(h int) {
	if a.helpHeight != h {
		a.helpHeight = h
		a.updateViewportSize()
	}
}

func (a *App) matchingBindings(prefix string) []key.Binding {
	prefix = strings.ToLower(prefix)
	var bindings []key.Binding
	for _, c := range a.commands {
		if !strings.HasPrefix(c.trigger, prefix) {
			continue
		}
		bindings = append(bindings, key.NewBinding(
			key.WithKeys(c.trigger),
			key.WithHelp(c.usage, c.description),
		))
	}
	return bindings
}

type statusSegment struct {
	label string
	value string
	style lipgloss.Style
}

func (a *App) statusLine() string {
	connection := statusSegment{value: "OFFLINE", style: a.styles.statusOffline}
	if a.statusOnline {
		connection = statusSegment{value: "ONLINE", style: a.styles.statusOnline}
	}
	user, room := "-", "-"
	if a.joined {
		user, room = a.user, a.room
	}

	segments := []statusSegment{
		{value: "RoomChat", style: a.styles.title},
		{value: strings.ToUpper(a.view.String()), style: a.styles.view},
		connection,
		{label: "Server", value: a.serverAddr, style: a.styles.value},
		{label: "User", value: user, style: a.styles.value},
		{label: "Room", value: room, style: a.styles.value},
	}
	rendered := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := seg.style.Render(seg.value)
		if seg.label != "" {
			text = a.styles.label.Render(seg.label+":") + " " + text
		}
		rendered = append(rendered, text)
	}
	return strings.Join(rendered, a.styles.label.Render(" | "))
}

func (a *App) logLineView() string {
	label, body := a.styles.logLabel, a.styles.logBody
	if a.logLine.level == logLevelError {
		label, body = a.styles.logLabelError, a.styles.logBodyError
	}
	return label.Render(a.logLine.label) + " " + body.Render(a.logLine.body)
}

func buildStyles() styleSet {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return styleSet{
		title:         fg("13").Bold(true),
		view:          fg("14").Bold(true),
		statusOnline:  fg("10").Bold(true),
		statusOffline: fg("9").Bold(true),
		label:         fg("8"),
		value:         fg("15"),
		notice:        fg("6").Italic(true),
		typing:        fg("8").Italic(true),
		logLabel:      fg("11").Bold(true),
		logBody:       fg("7"),
		logLabelError: fg("9").Bold(true),
		logBodyError:  fg("9"),
		help:          fg("12"),
	}
}

func (a *App) renderChatView() string {
	if len(a.chatHistory) == 0 {
		if !a.joined {
			return homeContent(a.cfg.CommandPrefix)
		}
		return emptyChatHint
	}
	lines := make([]string, len(a.chatHistory))
	for i, entry := range a.chatHistory {
		lines[i] = entry.line
	}
	return strings.Join(wrapLines(lines, a.contentWidth()), "\n")
}

func (a *App) renderHelpView() string {
	usageWidth := 0
	for _, c := range a.commands {
		usageWidth = max(usageWidth, runewidth.StringWidth(c.usage))
	}
	column := lipgloss.NewStyle().Width(usageWidth + 2)

	rows := []string{a.styles.title.Render("RoomChat Commands"), ""}
	for _, c := range a.commands {
		rows = append(rows, column.Render(c.usage)+a.styles.label.Render(c.description))
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderUsersView() string {
	if len(a.roster) == 0 {
		return emptyUsersHint
	}
	rows := make([]string, 0, len(a.roster))
	for _, u := range a.roster {
		row := fmt.Sprintf("%-20s room %-8s %s", u.User, u.Room, u.Email)
		if u.ID == a.onlineID {
			row += " (you)"
		}
		rows = append(rows, row)
	}
	sort.Strings(rows)
	return "Online users\n\n" + strings.Join(rows, "\n")
}

func (a *App) renderPipeView() string {
	if len(a.pipeHistory) == 0 {
		return fmt.Sprintf(emptyPipeHint, a.cfg.CommandPrefix)
	}
	frames := make([]string, 0, len(a.pipeHistory))
	for _, entry := range a.pipeHistory {
		event := entry.event
		if event == "" {
			event = "unknown"
		}
		header := a.styles.label.Render(fmt.Sprintf("[%s %-3s %s]", entry.timestamp, entry.direction, strings.ToUpper(event)))
		frames = append(frames, header+"\n"+entry.body)
	}
	return strings.Join(frames, "\n\n")
}

func homeContent(prefix string) string {
	banner := figure.NewColorFigure("ROOM CHAT", "3-d", "green", true)
	hints := []string{
		"Use " + prefix + "connect to reach the server.",
		"Use " + prefix + "profile <room> <user> <email> <photo> the first time you join.",
		"Use " + prefix + "join <room> <user> <email> to come back with the same identity.",
		"Use " + prefix + "delete <message_id> to remove a message.",
		"Use " + prefix + "users to see who is online and " + prefix + "pipe to inspect raw frames.",
		"Use " + prefix + "help to browse all commands.",
	}
	return strings.TrimRight(banner.String(), "\n") + "\n\n" + strings.Join(hints, "\n")
}

// wrapLines word-wraps each line to width display cells. Words wider than
// width are split. A non-positive width leaves the lines untouched.
func wrapLines(lines []string, width int) []string {
	if width <= 0 {
		return lines
	}
	width = max(width, minWrapWidth)
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		wrapped = append(wrapped, wrapLine(line, width)...)
	}
	return wrapped
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		rows   []string
		row    strings.Builder
		filled int
	)
	for _, word := range words {
		w := runewidth.StringWidth(word)
		if filled > 0 && filled+1+w <= width {
			row.WriteByte(' ')
			row.WriteString(word)
			filled += 1 + w
			continue
		}
		if filled > 0 {
			rows = append(rows, row.String())
			row.Reset()
		}
		for w > width {
			head, tail := splitAtWidth(word, width)
			rows = append(rows, head)
			word, w = tail, runewidth.StringWidth(tail)
		}
		row.WriteString(word)
		filled = w
	}
	if row.Len() > 0 {
		rows = append(rows, row.String())
	}
	return rows
}

// splitAtWidth cuts s after the last rune that fits in width cells, always
// taking at least one rune.
func splitAtWidth(s string, width int) (string, string) {
	used := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if used+rw > width && i > 0 {
			return s[:i], s[i:]
		}
		used += rw
	}
	return s, ""
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
