package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/tracker"
)

// libraryModel browses the strategy catalogue.
type libraryModel struct {
	width  int
	height int
	cursor int
}

func newLibraryModel() libraryModel {
	return libraryModel{}
}

func (l *libraryModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

func (l libraryModel) update(msg tea.Msg) (libraryModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			if l.cursor > 0 {
				l.cursor--
			}
		case key.Matches(msg, keys.Down):
			if l.cursor < len(tracker.Strategies)-1 {
				l.cursor++
			}
		}
	}
	return l, nil
}

func (l libraryModel) view() string {
	w := l.width - 4

	rows := []string{titleStyle.Render("Strategy library"), ""}
	for i, s := range tracker.Strategies {
		cursor := "  "
		style := normalItemStyle
		if i == l.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+s.Label))
	}

	detail := tracker.Strategies[l.cursor]
	descWidth := w - 8
	if descWidth < 20 {
		descWidth = 20
	}
	rows = append(rows,
		"",
		highlightStyle.Render(detail.Label),
		lipgloss.NewStyle().Width(descWidth).Render(detail.Description),
		"",
		mutedStyle.Render("  ↑/↓: browse  1: start an experiment with one of these"),
	)
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
