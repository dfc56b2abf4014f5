package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/griptape/internal/events"
)

const taskListWidth = 28

// TaskState is what the pane knows about one task of the run.
type TaskState struct {
	TaskID    string
	Kind      string
	ParentID  string
	Status    string // "pending", "running", "completed", "failed"
	Output    strings.Builder
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel lists the tasks of a run next to the output of the
// selected one.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	taskOrder   []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg debounces viewport refreshes while output streams in.
type tickMsg struct {
	tag int
}

func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch {
		case key.Matches(msg, keys.Down):
			m.selectTask(m.selectedIdx + 1)
		case key.Matches(msg, keys.Up):
			m.selectTask(m.selectedIdx - 1)
		case key.Matches(msg, keys.First):
			m.selectTask(0)
		case key.Matches(msg, keys.Last):
			m.selectTask(len(m.taskOrder) - 1)
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.StructureStartedEvent:
		// A new run replaces whatever was shown.
		m.tasks = make(map[string]*TaskState, len(msg.TaskIDs))
		m.taskOrder = nil
		m.selectedIdx = 0
		for _, id := range msg.TaskIDs {
			m.tasks[id] = &TaskState{TaskID: id, Status: statePending}
			m.taskOrder = append(m.taskOrder, id)
		}
		m.updateViewportContent()

	case events.TaskStartedEvent:
		t := m.ensure(msg.ID)
		t.Kind = msg.Kind
		t.ParentID = msg.ParentID
		t.Status = stateRunning
		t.StartTime = msg.Timestamp
		m.selectedIdx = m.indexOf(msg.ID)
		m.updateViewportContent()

	case events.TaskOutputEvent:
		t := m.ensure(msg.ID)
		t.Output.WriteString(msg.Line)
		if m.selectedTaskID() == msg.ID {
			m.updateTag++
			tag := m.updateTag
			return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
				return tickMsg{tag: tag}
			})
		}

	case events.TaskCompletedEvent:
		t := m.ensure(msg.ID)
		t.Status = stateCompleted
		t.Duration = msg.Duration
		if t.Output.Len() == 0 {
			t.Output.WriteString(msg.Output)
		}
		fmt.Fprintf(&t.Output, "\n\n[Completed in %v]", msg.Duration.Round(time.Millisecond))
		if m.selectedTaskID() == msg.ID {
			m.updateViewportContent()
		}

	case events.TaskFailedEvent:
		t := m.ensure(msg.ID)
		t.Status = stateFailed
		t.Duration = msg.Duration
		fmt.Fprintf(&t.Output, "\n\n[Failed: %v]", msg.Err)
		if m.selectedTaskID() == msg.ID {
			m.updateViewportContent()
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// ensure returns the state for id, adding it when the run start was missed.
func (m *TaskPaneModel) ensure(id string) *TaskState {
	if t, ok := m.tasks[id]; ok {
		return t
	}
	t := &TaskState{TaskID: id, Status: statePending}
	m.tasks[id] = t
	m.taskOrder = append(m.taskOrder, id)
	return t
}

func (m TaskPaneModel) indexOf(id string) int {
	for i, tid := range m.taskOrder {
		if tid == id {
			return i
		}
	}
	return m.selectedIdx
}

func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - taskListWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(taskListWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return paneStyle(m.focused).
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StateStyle(statePending).Render("Waiting..."))
	}
	for i, id := range m.taskOrder {
		t := m.tasks[id]
		name := shortID(id, width-4)
		line := fmt.Sprintf("%s %s", StatusIcon(t.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// selectTask moves the selection to idx, clamped to the task list.
func (m *TaskPaneModel) selectTask(idx int) {
	idx = min(max(idx, 0), len(m.taskOrder)-1)
	if idx < 0 || idx == m.selectedIdx {
		return
	}
	m.selectedIdx = idx
	m.updateViewportContent()
}

// shortID trims generated ids so they fit in the list column.
func shortID(id string, width int) string {
	if width < 4 || len(id) <= width {
		return id
	}
	return id[:width-3] + "..."
}

func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) updateViewportContent() {
	t, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := t.TaskID
	if t.Kind != "" {
		header = fmt.Sprintf("%s (%s)", t.TaskID, t.Kind)
	}
	m.viewport.SetContent(StyleTitle.Render(header) + "\n\n" + t.Output.String())
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-taskListWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// Status returns the displayed status of a task, or "" when unknown.
func (m TaskPaneModel) Status(id string) string {
	if t, ok := m.tasks[id]; ok {
		return t.Status
	}
	return ""
}

// Output returns the collected output of a task.
func (m TaskPaneModel) Output(id string) string {
	if t, ok := m.tasks[id]; ok {
		return t.Output.String()
	}
	return ""
}
