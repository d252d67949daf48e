package tui

import "github.com/charmbracelet/lipgloss"

// Palette: warm clay accent on a slate base.
var (
	colorPrimary   = lipgloss.Color("#E07A5F")
	colorSecondary = lipgloss.Color("#81B29A")
	colorAccent    = lipgloss.Color("#F2CC8F")
	colorMuted     = lipgloss.Color("#6B7280")
	colorSuccess   = lipgloss.Color("#52B788")
	colorWarning   = lipgloss.Color("#F4A261")
	colorError     = lipgloss.Color("#E63946")
	colorFg        = lipgloss.Color("#E9E4DA")
	colorSubtle    = lipgloss.Color("#3D405B")
	colorHighlight = lipgloss.Color("#A8DADC")
)

// Styles
var (
	// Tabs
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	// Panels
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(1, 2)

	// Text
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highlightStyle = lipgloss.NewStyle().
			Foreground(colorHighlight)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(18)

	// Header/footer
	headerStyle = lipgloss.NewStyle().
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	// List items
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	// Charts and calendar
	barStyle            = lipgloss.NewStyle().Foreground(colorSecondary)
	averageStyle        = lipgloss.NewStyle().Foreground(colorAccent)
	lowBarStyle         = lipgloss.NewStyle().Foreground(colorSubtle)
	interruptBarStyle   = lipgloss.NewStyle().Foreground(colorWarning)
	calendarCursorStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)
