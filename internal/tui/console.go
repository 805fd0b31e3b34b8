// Package tui implements the interactive operator console: a command prompt
// that dispatches as the console actor, with a live view of hub events.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/events"
)

const (
	transcriptSize = 500
	eventRows      = 6
)

type (
	outputMsg Output
	eventMsg  events.Event
	tickMsg   time.Time
	runMsg    struct {
		label  string
		result command.Result
		err    error
	}
)

// Model is the BubbleTea model for the console.
type Model struct {
	session Session
	events  <-chan events.Event

	width  int
	height int

	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	history    []string
	histIdx    int

	eventLog []events.Event
	activity Activity
	status   status
	theme    Theme

	lastError string
	now       func() time.Time
}

// New creates a console model. evs may be nil when no event hub is wired.
func New(session Session, evs <-chan events.Event) Model {
	in := textinput.New()
	in.Placeholder = "command"
	in.Prompt = "/ "
	in.CharLimit = 512
	in.Focus()

	theme := NewDefaultTheme()
	in.PromptStyle = theme.Prompt

	return Model{
		session:  session,
		events:   evs,
		input:    in,
		viewport: viewport.New(80, 10),
		theme:    theme,
		status:   status{Started: time.Now()},
		now:      time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		receiveOutput(m.session.Output()),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
	}
	if m.events != nil {
		cmds = append(cmds, receiveEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyUp:
			m.recall(-1)
			return m, nil
		case tea.KeyDown:
			m.recall(1)
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-10, 10)
		m.viewport.Width = max(msg.Width-6, 10)
		// Header, events pane, prompt and margins.
		m.viewport.Height = max(msg.Height-eventRows-13, 3)
		m.refresh()
		return m, nil

	case tickMsg:
		m.activity.Decay(m.now())
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case runMsg:
		switch {
		case msg.err != nil:
			m.lastError = msg.err.Error()
		case msg.result.IsContinue():
			m.status.Pending++
			m.appendLine(m.theme.Pending.Render("  … pending"))
		default:
			m.status.LastCommand = msg.label
			m.status.LastOutcome = msg.result.Outcome().String()
		}
		return m, nil

	case outputMsg:
		if msg.Done {
			m.status.Pending = max(m.status.Pending-1, 0)
			m.status.LastCommand = msg.Command
			m.status.LastOutcome = msg.Outcome.String()
			m.appendLine(m.theme.Dim.Render(fmt.Sprintf("  %s: ", msg.Command)) +
				m.theme.outcomeStyle(msg.Outcome.String()).Render(msg.Outcome.String()))
		} else {
			for _, line := range strings.Split(msg.Text, "\n") {
				m.appendLine("  " + line)
			}
		}
		return m, receiveOutput(m.session.Output())

	case eventMsg:
		m.eventLog = append([]events.Event{events.Event(msg)}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		m.activity.OnEvent(m.now())
		return m, receiveEvent(m.events)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the current input line.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}
	switch line {
	case "quit", "exit":
		return m, tea.Quit
	case "clear":
		m.transcript = nil
		m.refresh()
		return m, nil
	}

	if len(m.history) == 0 || m.history[len(m.history)-1] != line {
		m.history = append(m.history, line)
	}
	m.histIdx = len(m.history)
	m.lastError = ""
	m.appendLine(m.theme.Echo.Render("> " + line))

	session := m.session
	label, _, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return m, func() tea.Msg {
		res, err := session.Run(context.Background(), line)
		return runMsg{label: label, result: res, err: err}
	}
}

// recall moves through the input history.
func (m *Model) recall(step int) {
	if len(m.history) == 0 {
		return
	}
	m.histIdx = min(max(m.histIdx+step, 0), len(m.history))
	if m.histIdx == len(m.history) {
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histIdx])
	m.input.CursorEnd()
}

func (m *Model) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	if len(m.transcript) > transcriptSize {
		m.transcript = m.transcript[len(m.transcript)-transcriptSize:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing console..."
	}

	header := renderHeader(m.status, m.activity, m.theme, m.width, m.now())
	output := m.theme.Border.Width(m.width - 4).Render(m.viewport.View())
	eventPane := renderEventStream(m.eventLog, eventRows, m.theme, m.width)

	parts := []string{header, output, eventPane, m.input.View()}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(" [enter] Run • [↑/↓] History • [pgup/pgdn] Scroll • [esc] Quit"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func receiveOutput(ch <-chan Output) tea.Cmd {
	return func() tea.Msg {
		return outputMsg(<-ch)
	}
}

func receiveEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Run starts the console program and blocks until the operator quits.
func Run(ctx context.Context, session Session, evs <-chan events.Event) error {
	p := tea.NewProgram(New(session, evs), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
