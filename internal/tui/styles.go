package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by both panes.
const (
	colorAccent = lipgloss.Color("63")
	colorMuted  = lipgloss.Color("244")
	colorFaint  = lipgloss.Color("238")
	colorOK     = lipgloss.Color("42")
	colorWarn   = lipgloss.Color("214")
	colorBad    = lipgloss.Color("203")
)

// Task states as shown by the panes.
const (
	statePending   = "pending"
	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"
)

var (
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	StyleHelp  = lipgloss.NewStyle().Foreground(colorMuted)

	StyleSelected = lipgloss.NewStyle().Reverse(true)

	// StyleLink joins neighbouring tasks in the chain view.
	StyleLink = lipgloss.NewStyle().Foreground(colorFaint)
)

// stateStyle pairs the glyph and colour used for one task state.
type stateStyle struct {
	glyph string
	style lipgloss.Style
}

var stateStyles = map[string]stateStyle{
	statePending:   {"○", lipgloss.NewStyle().Foreground(colorMuted)},
	stateRunning:   {"◐", lipgloss.NewStyle().Foreground(colorWarn).Bold(true)},
	stateCompleted: {"✓", lipgloss.NewStyle().Foreground(colorOK).Bold(true)},
	stateFailed:    {"✗", lipgloss.NewStyle().Foreground(colorBad).Bold(true)},
}

// StateStyle returns the style for a task state. Unknown states render as
// pending.
func StateStyle(state string) lipgloss.Style {
	if s, ok := stateStyles[state]; ok {
		return s.style
	}
	return stateStyles[statePending].style
}

// StatusIcon returns the coloured glyph for a task state.
func StatusIcon(state string) string {
	s, ok := stateStyles[state]
	if !ok {
		s = stateStyles[statePending]
	}
	return s.style.Render(s.glyph)
}

// paneStyle is the frame around a pane. The focused pane gets a thick
// accent border.
func paneStyle(focused bool) lipgloss.Style {
	if focused {
		return lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(colorAccent)
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFaint)
}
