// Package tui is the interactive terminal front end of the assistant.
//
// The model never mutates session data. It reads snapshots from the session
// store whenever the store signals a change and forwards user intents
// (submit, stop) back to it.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ashureev/shopping-assistant/internal/session"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

const (
	stopTimeout  = 5 * time.Second
	logHeight    = 8
	minLogWidth  = 20
	defaultWidth = 100
)

// Session is the state the UI renders and the intents it can send.
type Session interface {
	Snapshot() session.Snapshot
	Submit(query string) bool
	Stop(ctx context.Context) error
	Changes() <-chan struct{}
}

type changedMsg struct{}

type stopDoneMsg struct {
	err error
}

// Model is the bubbletea model for the assistant UI.
type Model struct {
	session Session
	snap    session.Snapshot

	input   textinput.Model
	logs    viewport.Model
	spinner spinner.Model

	group    viewmodel.GroupKey
	width    int
	notice   string
	location *time.Location
}

// Option configures a Model.
type Option func(*Model)

// WithGroupKey sets the initial results grouping.
func WithGroupKey(k viewmodel.GroupKey) Option {
	return func(m *Model) { m.group = k }
}

// WithLocation sets the zone used for log timestamps.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) { m.location = loc }
}

// New creates the UI model for s.
func New(s Session, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "What do you need? e.g. groceries for a vegan week"
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		session:  s,
		snap:     s.Snapshot(),
		input:    ti,
		logs:     viewport.New(defaultWidth-4, logHeight),
		spinner:  sp,
		group:    viewmodel.GroupByStore,
		width:    defaultWidth,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refreshLogs()
	return m
}

// Init starts the cursor blink, the spinner and the change subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.session.Changes()))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update handles input, store changes and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.logs.Width = max(msg.Width-4, minLogWidth)
		m.input.Width = max(msg.Width-6, minLogWidth)
		m.refreshLogs()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.snap = m.session.Snapshot()
		m.refreshLogs()
		return m, waitForChange(m.session.Changes())

	case stopDoneMsg:
		if msg.err != nil {
			m.notice = "Stop failed: " + msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		query := strings.TrimSpace(m.input.Value())
		switch {
		case query == "":
			m.notice = ""
		case m.session.Submit(query):
			m.input.Reset()
			m.notice = ""
		case m.snap.Processing:
			m.notice = "A query is already being processed"
		}
		return m, nil

	case tea.KeyCtrlX:
		if !m.snap.Processing {
			return m, nil
		}
		m.notice = "Stopping..."
		return m, stopCmd(m.session)

	case tea.KeyTab:
		m.group = m.group.Toggle()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func stopCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return stopDoneMsg{err: s.Stop(ctx)}
	}
}

func (m *Model) refreshLogs() {
	atBottom := m.logs.AtBottom()
	m.logs.SetContent(renderLogs(m.snap.Logs, m.location))
	if atBottom {
		m.logs.GotoBottom()
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(s Session, opts ...Option) error {
	p := tea.NewProgram(New(s, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
