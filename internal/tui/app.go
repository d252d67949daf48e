package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/export"
	"github.com/sadopc/habitlab/internal/tracker"
)

// refreshInterval is how often the app re-resolves the experiment state, so
// natural expiry and the day rollover show up without user input.
const refreshInterval = time.Minute

// App is the root Bubble Tea model.
type App struct {
	session *tracker.Session
	width   int
	height  int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	settings settingsModel
	record   recordModel
	results  resultsModel
	library  libraryModel

	help        help.Model
	status      string
	statusError bool
}

func NewApp(s *tracker.Session) App {
	h := help.New()
	h.ShowAll = false

	return App{
		session:    s,
		activeView: viewSettings,
		settings:   newSettingsModel(s),
		record:     newRecordModel(s),
		results:    newResultsModel(s),
		library:    newLibraryModel(),
		help:       h,
	}
}

// Run starts the TUI on a signed-in session and blocks until the user quits
// or ctx is cancelled. Session events reach the app as messages.
func Run(ctx context.Context, s *tracker.Session, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewApp(s), opts...)

	unsubscribe := s.Subscribe(func(ev tracker.Event) {
		p.Send(sessionEventMsg{event: ev})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.loadSurface(),
		a.results.refresh(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) loadSurface() tea.Cmd {
	return func() tea.Msg {
		surf, err := a.session.Surface(context.Background())
		return surfaceMsg{surface: surf, err: err}
	}
}

func (a App) refreshAll() tea.Cmd {
	return tea.Batch(a.loadSurface(), a.results.refresh())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.settings.setSize(a.width, contentHeight)
		a.record.setSize(a.width, contentHeight)
		a.results.setSize(a.width, contentHeight)
		a.library.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewSettings
			return a, a.loadSurface()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewRecord
			return a, a.loadSurface()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewResults
			return a, a.results.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewLibrary
			return a, nil
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		return a, tea.Batch(tickCmd(), a.loadSurface())

	case surfaceMsg:
		if msg.err != nil {
			a.setStatus(errorText(msg.err), true)
			return a, nil
		}
		a.settings.setSurface(msg.surface)
		a.record.setSurface(msg.surface)
		return a, nil

	case experimentsDataMsg, resultsDataMsg:
		var cmd tea.Cmd
		a.results, cmd = a.results.update(msg)
		return a, cmd

	case experimentCreatedMsg:
		a.setStatus("Experiment started: "+msg.experiment.Action, false)
		return a, a.refreshAll()

	case experimentEndedMsg:
		a.setStatus("Experiment ended", false)
		return a, a.refreshAll()

	case recordSavedMsg:
		a.setStatus("Today's record saved", false)
		return a, a.refreshAll()

	case sessionEventMsg:
		if msg.event.Kind == tracker.EventSignedOut {
			return a, tea.Quit
		}
		return a, a.refreshAll()

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case exportDoneMsg:
		a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.statusError = isError
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	case viewRecord:
		a.record, cmd = a.record.update(msg)
	case viewResults:
		a.results, cmd = a.results.update(msg)
	case viewLibrary:
		a.library, cmd = a.library.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewSettings:
		return a.settings.formActive
	case viewRecord:
		return a.record.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewSettings, viewRecord:
		return a.loadSurface()
	case viewResults:
		return a.results.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewSettings:
		content = a.settings.view()
	case viewRecord:
		content = a.record.view()
	case viewResults:
		content = a.results.view()
	case viewLibrary:
		content = a.library.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("habitlab")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	running := ""
	if a.session.Experiment() != nil {
		running = successStyle.Render(" ● running")
	}

	left := footerStyle.Render(helpView)
	right := running + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range export.Formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+strings.ToUpper(string(f))))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(export.Formats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(export.Formats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// doExport writes the experiment selected in Results to the home directory.
func (a App) doExport(format export.Format) tea.Cmd {
	id := a.results.selectedID()
	return func() tea.Msg {
		if id == "" {
			return statusMsg{text: "Nothing to export yet", isError: true}
		}
		rows, err := a.session.ExportRows(context.Background(), id)
		if err != nil {
			return statusMsg{text: "Export error: " + errorText(err), isError: true}
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		path := filepath.Join(home, export.FileName(format, a.session.Now().In(a.session.Location())))
		if err := export.ToFile(format, rows, path); err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}
