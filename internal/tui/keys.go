package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	NextPane  key.Binding
	PrevPane  key.Binding
	TasksPane key.Binding
	ChainPane key.Binding
	Up        key.Binding
	Down      key.Binding
	First     key.Binding
	Last      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	NextPane:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pane")),
	PrevPane:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev pane")),
	TasksPane: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "tasks")),
	ChainPane: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "chain")),
	Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "prev task")),
	Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next task")),
	First:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "first task")),
	Last:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "last task")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) shortHelp() []key.Binding {
	return []key.Binding{k.NextPane, k.TasksPane, k.ChainPane, k.Down, k.Up, k.Last, k.Quit}
}

// HelpView renders the key bar shown under the panes.
func HelpView() string {
	parts := make([]string, 0, len(keys.shortHelp()))
	for _, b := range keys.shortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return StyleHelp.Render(strings.Join(parts, " · "))
}
