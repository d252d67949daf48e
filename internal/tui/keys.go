package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	End     key.Binding
	Edit    key.Binding
	Metric  key.Binding
	Export  key.Binding
	PrevDay key.Binding
	NextDay key.Binding
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	Tab4    key.Binding
	Tab     key.Binding
	Help    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	End: key.NewBinding(
		key.WithKeys("X"),
		key.WithHelp("X", "end experiment"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit record"),
	),
	Metric: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "next metric"),
	),
	Export: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "export"),
	),
	PrevDay: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "previous day"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next day"),
	),
	Tab1: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "experiment"),
	),
	Tab2: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "record"),
	),
	Tab3: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "results"),
	),
	Tab4: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "library"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Edit, k.End, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.Edit, k.End},
		{k.Left, k.Right, k.Metric, k.Export},
		{k.PrevDay, k.NextDay},
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4, k.Tab},
		{k.Up, k.Down, k.Back, k.Quit},
	}
}
