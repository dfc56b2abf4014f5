// Package tui is a Bubble Tea monitor for pipeline runs. It renders the
// events a structure publishes on the event bus.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/griptape/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneChain
	paneCount
)

// Model is the root Bubble Tea model.
type Model struct {
	taskPane    TaskPaneModel
	chainPane   ChainPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
	busClosed   bool
}

// New creates a model subscribed to every event on bus.
func New(bus *events.EventBus) Model {
	m := Model{
		taskPane:    NewTaskPaneModel(),
		chainPane:   NewChainPaneModel(),
		focusedPane: PaneTasks,
		eventSub:    bus.SubscribeAll(256),
	}
	m.updateFocusStates()
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// busClosedMsg is delivered once the event bus has been closed.
type busClosedMsg struct{}

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.NextPane):
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()
		case key.Matches(msg, keys.PrevPane):
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()
		case key.Matches(msg, keys.TasksPane):
			m.focusedPane = PaneTasks
			m.updateFocusStates()
		case key.Matches(msg, keys.ChainPane):
			m.focusedPane = PaneChain
			m.updateFocusStates()
		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case tickMsg:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)

	case events.TaskOutputEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.StructureStartedEvent, events.TaskStartedEvent, events.TaskCompletedEvent, events.TaskFailedEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.chainPane, cmd = m.chainPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.PipelineProgressEvent, events.StructureFinishedEvent:
		var cmd tea.Cmd
		m.chainPane, cmd = m.chainPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case busClosedMsg:
		m.busClosed = true
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	body := lipgloss.JoinVertical(lipgloss.Left, m.taskPane.View(), m.chainPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, body, HelpView())
}

// computeLayout gives the task pane 70% of the height above the help bar.
func (m *Model) computeLayout() {
	available := m.height - 1
	taskHeight := (available * 70) / 100
	m.taskPane.SetSize(m.width, taskHeight)
	m.chainPane.SetSize(m.width, available-taskHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.chainPane.SetFocused(m.focusedPane == PaneChain)
}
