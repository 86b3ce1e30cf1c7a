package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/protocol"
)

// App implements the bubbletea tea.Model interface for the terminal client.
type App struct {
	cfg      config.ClientConfig
	commands []commandSpec
	styles   styleSet
	keys     keyMap

	input      textinput.Model
	viewport   viewport.Model
	help       help.Model
	showHelp   bool
	helpView   string
	helpHeight int
	width      int
	height     int
	view       viewMode

	session      *Session
	serverAddr   string
	statusOnline bool

	user         string
	email        string
	room         string
	profilePhoto string
	onlineID     string
	joined       bool
	typingSent   bool

	chatHistory []chatEntry
	roster      map[string]protocol.OnlineUser
	typingUsers map[string]struct{}
	pipeHistory []pipeEntry
	logLine     logEntry
}

type viewMode int

const (
	viewChat viewMode = iota
	viewHelp
	viewPipe
	viewUsers
)

func (v viewMode) String() string {
	switch v {
	case viewChat:
		return "chat"
	case viewHelp:
		return "help"
	case viewPipe:
		return "pipe"
	case viewUsers:
		return "users"
	default:
		return "unknown"
	}
}

type keyMap struct {
	submit   key.Binding
	complete key.Binding
	quit     key.Binding
	scroll   key.Binding
}

type commandSpec struct {
	trigger     string
	usage       string
	description string
}

type chatEntry struct {
	id   string
	line string
}

type pipeDirection string

const (
	pipeDirectionIn  pipeDirection = "IN"
	pipeDirectionOut pipeDirection = "OUT"
)

type pipeEntry struct {
	direction pipeDirection
	event     string
	timestamp string
	body      string
}

type logLevel int

const (
	logLevelInfo logLevel = iota
	logLevelError
)

type logEntry struct {
	level logLevel
	label string
	body  string
}

type styleSet struct {
	title         lipgloss.Style
	view          lipgloss.Style
	statusOnline  lipgloss.Style
	statusOffline lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	notice        lipgloss.Style
	typing        lipgloss.Style
	logLabel      lipgloss.Style
	logBody       lipgloss.Style
	logLabelError lipgloss.Style
	logBodyError  lipgloss.Style
	help          lipgloss.Style
}

type connectResultMsg struct {
	session *Session
	address string
	err     error
}

type sessionEnvelopeMsg struct {
	session  *Session
	envelope protocol.Envelope
}

type sessionClosedMsg struct {
	session *Session
}

type sendResultMsg struct {
	session     *Session
	description string
	err         error
}

const (
	pipeHistoryLimit = 200
	chatHistoryLimit = 500
)

// NewApp returns a Bubble Tea model pre-populated with defaults.
func NewApp(cfg config.ClientConfig) *App {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = fmt.Sprintf("type a message or %shelp", cfg.CommandPrefix)
	input.CharLimit = 4096
	input.Focus()

	app := &App{
		cfg:         cfg,
		commands:    defaultCommands(cfg.CommandPrefix),
		styles:      buildStyles(),
		keys:        defaultKeyMap(),
		input:       input,
		viewport:    viewport.New(80, 20),
		help:        help.New(),
		view:        viewChat,
		serverAddr:  cfg.ServerURL,
		roster:      make(map[string]protocol.OnlineUser),
		typingUsers: make(map[string]struct{}),
		pipeHistory: make([]pipeEntry, 0, pipeHistoryLimit),
		logLine:     logEntry{label: "INFO", body: "Use " + cfg.CommandPrefix + "connect to reach the server"},
	}
	app.updateViewportContent()
	return app
}

func defaultKeyMap() keyMap {
	return keyMap{
		submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		complete: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "complete command")),
		quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		scroll:   key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
	}
}

// Init is part of the tea.Model interface.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles user input and internal events.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
		a.updateInputWidth()
		a.updateViewportSize()
		a.updateViewportContent()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	case connectResultMsg:
		return a, a.handleConnectResult(m)
	case sessionEnvelopeMsg:
		if m.session != a.session {
			return a, nil
		}
		a.handleSessionEnvelope(m.envelope)
		return a, a.listenForSession()
	case sessionClosedMsg:
		if m.session == a.session {
			a.resetConnection()
			a.logErrorf("Connection closed")
		}
		return a, nil
	case sendResultMsg:
		if m.err != nil && m.session == a.session {
			a.logErrorf("Failed to send %s: %v", m.description, m.err)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.quit):
		if a.session != nil {
			_ = a.session.Close()
		}
		return a, tea.Quit
	case key.Matches(msg, a.keys.complete):
		a.handleTabCompletion()
		a.updateHelp()
		return a, nil
	case key.Matches(msg, a.keys.scroll):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	case key.Matches(msg, a.keys.submit):
		value := strings.TrimSpace(a.input.Value())
		a.input.Reset()
		a.updateHelp()
		cmds := []tea.Cmd{a.syncTyping()}
		if value != "" {
			cmds = append(cmds, a.handleSubmit(value))
		}
		return a, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.updateHelp()
	return a, tea.Batch(cmd, a.syncTyping())
}

func (a *App) handleConnectResult(msg connectResultMsg) tea.Cmd {
	if msg.session != a.session {
		return nil
	}
	if msg.err != nil {
		a.session = nil
		a.statusOnline = false
		a.logErrorf("Connection to %s failed: %v", msg.address, msg.err)
		return nil
	}
	a.statusOnline = true
	a.logf("Connected to %s", msg.address)
	return a.listenForSession()
}

func (a *App) resetConnection() {
	a.session = nil
	a.statusOnline = false
	a.leaveRoom()
}

func (a *App) leaveRoom() {
	a.joined = false
	a.onlineID = ""
	a.typingSent = false
	a.typingUsers = make(map[string]struct{})
}

func (a *App) isConnected() bool {
	return a.session != nil && a.statusOnline
}

func (a *App) logf(format string, args ...any) {
	a.logLine = logEntry{level: logLevelInfo, label: "INFO", body: fmt.Sprintf(format, args...)}
}

func (a *App) logErrorf(format string, args ...any) {
	a.logLine = logEntry{level: logLevelError, label: "ERROR", body: fmt.Sprintf(format, args...)}
}
