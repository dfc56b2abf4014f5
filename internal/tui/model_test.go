package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/griptape/internal/events"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelTracksRun(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()

	m := New(bus)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, events.StructureStartedEvent{StructureID: "s1", Kind: "pipeline", TaskIDs: []string{"a", "b"}})

	if got := m.taskPane.Status("a"); got != "pending" {
		t.Fatalf("status(a) = %q, want pending", got)
	}

	m = update(t, m, events.TaskStartedEvent{ID: "a", Kind: "PromptTask"})
	m = update(t, m, events.TaskOutputEvent{ID: "a", Line: "hello "})
	m = update(t, m, events.TaskOutputEvent{ID: "a", Line: "world"})
	m = update(t, m, events.TaskCompletedEvent{ID: "a", Output: "hello world", Duration: time.Millisecond})
	m = update(t, m, events.PipelineProgressEvent{StructureID: "s1", Total: 2, Completed: 1, Pending: 1})

	if got := m.taskPane.Status("a"); got != "completed" {
		t.Errorf("status(a) = %q, want completed", got)
	}
	if out := m.taskPane.Output("a"); !strings.HasPrefix(out, "hello world") {
		t.Errorf("output(a) = %q", out)
	}
	if m.chainPane.completed != 1 || m.chainPane.pending != 1 {
		t.Errorf("chain counts = %d completed, %d pending", m.chainPane.completed, m.chainPane.pending)
	}

	runErr := errors.New("boom")
	m = update(t, m, events.TaskStartedEvent{ID: "b", Kind: "PromptTask", ParentID: "a"})
	m = update(t, m, events.TaskFailedEvent{ID: "b", Err: runErr})
	m = update(t, m, events.StructureFinishedEvent{StructureID: "s1", Err: runErr})

	if got := m.taskPane.Status("b"); got != "failed" {
		t.Errorf("status(b) = %q, want failed", got)
	}
	done, err := m.chainPane.Finished()
	if !done || !errors.Is(err, runErr) {
		t.Errorf("Finished() = %v, %v", done, err)
	}
	if view := m.View(); !strings.Contains(view, "Failed after") {
		t.Errorf("view does not report the failure:\n%s", view)
	}
}

func TestModelOutputWithoutStreaming(t *testing.T) {
	m := New(events.NewEventBus())
	m = update(t, m, events.TaskStartedEvent{ID: "x"})
	m = update(t, m, events.TaskCompletedEvent{ID: "x", Output: "full answer"})

	if out := m.taskPane.Output("x"); !strings.HasPrefix(out, "full answer") {
		t.Errorf("output = %q", out)
	}
}

func TestModelFocusCycles(t *testing.T) {
	m := New(events.NewEventBus())
	if m.focusedPane != PaneTasks {
		t.Fatalf("initial focus = %v", m.focusedPane)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPane != PaneChain {
		t.Errorf("after tab focus = %v, want chain", m.focusedPane)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPane != PaneTasks {
		t.Errorf("after second tab focus = %v, want tasks", m.focusedPane)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if m.focusedPane != PaneChain {
		t.Errorf("after '2' focus = %v, want chain", m.focusedPane)
	}
}

func TestModelQuit(t *testing.T) {
	m := New(events.NewEventBus())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("model should be quitting")
	}
}

func TestModelBusClosed(t *testing.T) {
	bus := events.NewEventBus()
	m := New(bus)
	bus.Close()

	msg := m.Init()()
	if _, ok := msg.(busClosedMsg); !ok {
		t.Fatalf("Init() after close = %T, want busClosedMsg", msg)
	}
}

func TestTaskSelectionKeys(t *testing.T) {
	m := New(events.NewEventBus())
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, events.StructureStartedEvent{StructureID: "s1", TaskIDs: []string{"a", "b", "c"}})

	steps := []struct {
		key  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}, "b"},
		{tea.KeyMsg{Type: tea.KeyDown}, "c"},
		{tea.KeyMsg{Type: tea.KeyDown}, "c"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")}, "a"},
		{tea.KeyMsg{Type: tea.KeyUp}, "a"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")}, "c"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")}, "b"},
	}
	for i, step := range steps {
		m = update(t, m, step.key)
		if got := m.taskPane.selectedTaskID(); got != step.want {
			t.Fatalf("step %d (%s): selected = %q, want %q", i, step.key, got, step.want)
		}
	}

	// Selection keys only reach the focused pane.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	if got := m.taskPane.selectedTaskID(); got != "b" {
		t.Errorf("selected after unfocused key = %q, want b", got)
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		state string
		glyph string
	}{
		{statePending, "○"},
		{stateRunning, "◐"},
		{stateCompleted, "✓"},
		{stateFailed, "✗"},
		{"bogus", "○"},
	}
	for _, tt := range tests {
		if got := StatusIcon(tt.state); !strings.Contains(got, tt.glyph) {
			t.Errorf("StatusIcon(%q) = %q, want glyph %q", tt.state, got, tt.glyph)
		}
	}
}

func TestHelpViewListsBindings(t *testing.T) {
	help := HelpView()
	for _, want := range []string{"tab", "next task", "quit"} {
		if !strings.Contains(help, want) {
			t.Errorf("HelpView() = %q, missing %q", help, want)
		}
	}
}
