package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/events"
)

type fakeSession struct {
	mu     sync.Mutex
	lines  []string
	result command.Result
	out    chan Output
}

func newFakeSession(r command.Result) *fakeSession {
	return &fakeSession{result: r, out: make(chan Output, 8)}
}

func (f *fakeSession) Run(_ context.Context, line string) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	return f.result, nil
}

func (f *fakeSession) Output() <-chan Output { return f.out }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeLine(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestSubmitRunsLine(t *testing.T) {
	s := newFakeSession(command.Success())
	m := New(s, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, cmd := typeLine(t, m, "/kit create starter")
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, strings.Join(m.transcript, "\n"), "> /kit create starter")

	msg := cmd()
	assert.Equal(t, []string{"/kit create starter"}, s.lines)

	m, _ = update(t, m, msg)
	assert.Equal(t, "kit", m.status.LastCommand)
	assert.Equal(t, "success", m.status.LastOutcome)
	assert.Zero(t, m.status.Pending)
}

func TestBlankLineIsIgnored(t *testing.T) {
	s := newFakeSession(command.Success())
	m := New(s, nil)

	m, cmd := typeLine(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.transcript)
	assert.Empty(t, m.history)
}

func TestDeferredOutcome(t *testing.T) {
	s := newFakeSession(command.Continue())
	m := New(s, nil)

	m, cmd := typeLine(t, m, "spawn")
	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, m.status.Pending)
	assert.Empty(t, m.status.LastOutcome)

	m, follow := update(t, m, outputMsg{Text: "warmup.start spawn 3s"})
	require.NotNil(t, follow)
	m, _ = update(t, m, outputMsg{Command: "spawn", Done: true, Outcome: command.OutcomeFail})
	assert.Zero(t, m.status.Pending)
	assert.Equal(t, "fail", m.status.LastOutcome)

	transcript := strings.Join(m.transcript, "\n")
	assert.Contains(t, transcript, "warmup.start spawn 3s")
	assert.Contains(t, transcript, "spawn: ")
}

func TestHistoryRecall(t *testing.T) {
	s := newFakeSession(command.Success())
	m := New(s, nil)

	m, _ = typeLine(t, m, "ping")
	m, _ = typeLine(t, m, "balance")
	m, _ = typeLine(t, m, "balance")
	assert.Equal(t, []string{"ping", "balance"}, m.history)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "balance", m.input.Value())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "ping", m.input.Value())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "ping", m.input.Value())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, m.input.Value())
}

func TestEventsAreLogged(t *testing.T) {
	s := newFakeSession(command.Success())
	evs := make(chan events.Event, 1)
	m := New(s, evs)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return now }

	m, cmd := update(t, m, eventMsg(events.Event{ID: 1, Type: events.CommandCompleted}))
	require.NotNil(t, cmd)
	require.Len(t, m.eventLog, 1)
	assert.Equal(t, 5, m.activity.Dots())

	m.activity.Decay(now.Add(5 * time.Second))
	assert.Equal(t, 3, m.activity.Dots())
	m.activity.Decay(now.Add(time.Minute))
	assert.Zero(t, m.activity.Dots())
}

func TestDescribeEvent(t *testing.T) {
	data, err := json.Marshal(map[string]any{
		"invocation_id": "0123456789abcdef",
		"command":       "kit.create",
		"actor":         "alice",
		"outcome":       "success",
	})
	require.NoError(t, err)

	got := describeEvent(events.Event{Type: events.CommandCompleted, Data: data})
	assert.Equal(t, "[01234567] kit.create alice success", got)

	raw := describeEvent(events.Event{Type: "other", Data: []byte(`{"n":1}`)})
	assert.Equal(t, `{"n":1}`, raw)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 7*time.Second, "3m 7s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestViewRendersPanes(t *testing.T) {
	s := newFakeSession(command.Success())
	m := New(s, nil)
	assert.Equal(t, "Initializing console...", m.View())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m.lastError = "scheduler stopped"
	view := m.View()
	assert.Contains(t, view, "CMDGATE CONSOLE")
	assert.Contains(t, view, "Waiting for events...")
	assert.Contains(t, view, "scheduler stopped")
}
