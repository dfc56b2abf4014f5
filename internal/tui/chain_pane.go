package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/griptape/internal/events"
)

// ChainPaneModel shows the task chain of the current run and its progress.
type ChainPaneModel struct {
	structureID string
	order       []string
	status      map[string]string
	total       int
	completed   int
	failed      int
	pending     int
	finished    bool
	runErr      error
	duration    time.Duration
	width       int
	height      int
	focused     bool
}

// NewChainPaneModel creates an empty chain pane.
func NewChainPaneModel() ChainPaneModel {
	return ChainPaneModel{status: make(map[string]string)}
}

func (m ChainPaneModel) Update(msg tea.Msg) (ChainPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.StructureStartedEvent:
		fresh := NewChainPaneModel()
		fresh.width, fresh.height, fresh.focused = m.width, m.height, m.focused
		m = fresh
		m.structureID = msg.StructureID
		m.order = append([]string(nil), msg.TaskIDs...)
		m.total = len(msg.TaskIDs)
		m.pending = m.total
		for _, id := range msg.TaskIDs {
			m.status[id] = statePending
		}

	case events.TaskStartedEvent:
		m.status[msg.ID] = stateRunning
	case events.TaskCompletedEvent:
		m.status[msg.ID] = stateCompleted
	case events.TaskFailedEvent:
		m.status[msg.ID] = stateFailed

	case events.PipelineProgressEvent:
		m.total = msg.Total
		m.completed = msg.Completed
		m.failed = msg.Failed
		m.pending = msg.Pending

	case events.StructureFinishedEvent:
		m.finished = true
		m.runErr = msg.Err
		m.duration = msg.Duration
	}
	return m, nil
}

func (m ChainPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	heading := "Pipeline"
	if m.structureID != "" {
		heading += " " + shortID(m.structureID, 12)
	}
	title := StyleTitle.Render(heading)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StateStyle(statePending).Render("Waiting for run..."))
	} else {
		links := make([]string, 0, len(m.order))
		for _, id := range m.order {
			links = append(links, StatusIcon(m.status[id])+" "+shortID(id, 12))
		}
		b.WriteString(strings.Join(links, StyleLink.Render(" → ")))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Total:     %d\n", m.total)
	fmt.Fprintf(&b, "Completed: %s\n", StateStyle(stateCompleted).Render(fmt.Sprint(m.completed)))
	fmt.Fprintf(&b, "Failed:    %s\n", StateStyle(stateFailed).Render(fmt.Sprint(m.failed)))
	fmt.Fprintf(&b, "Pending:   %s\n", StateStyle(statePending).Render(fmt.Sprint(m.pending)))

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		pendingWidth := barWidth - completedWidth - failedWidth

		bar := StateStyle(stateCompleted).Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StateStyle(stateFailed).Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StateStyle(statePending).Render(strings.Repeat(".", max(0, pendingWidth)))
		fmt.Fprintf(&b, "\n[%s]  %d/%d\n", bar, m.completed, m.total)
	}

	if m.finished {
		b.WriteString("\n")
		if m.runErr != nil {
			b.WriteString(StateStyle(stateFailed).Render(fmt.Sprintf("Failed after %v: %v", m.duration.Round(time.Millisecond), m.runErr)))
		} else {
			b.WriteString(StateStyle(stateCompleted).Render(fmt.Sprintf("Finished in %v", m.duration.Round(time.Millisecond))))
		}
	}

	return paneStyle(m.focused).
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// Finished reports whether the run has ended, and its error.
func (m ChainPaneModel) Finished() (bool, error) {
	return m.finished, m.runErr
}

// SetSize updates the pane dimensions.
func (m *ChainPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ChainPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
