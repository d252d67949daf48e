package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/tracker"
)

// settingsForm holds the form values behind pointers so they survive value
// copies of the model.
type settingsForm struct {
	strategy string
	custom   string
	action   string
	days     string
	reminder string
	confirm  bool
}

type settingsModel struct {
	session *tracker.Session
	width   int
	height  int

	surface tracker.Surface
	loaded  bool

	formActive bool
	ending     bool // the form is the end confirmation
	form       *huh.Form
	values     *settingsForm
}

func newSettingsModel(s *tracker.Session) settingsModel {
	return settingsModel{
		session: s,
		values:  &settingsForm{},
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s *settingsModel) setSurface(surf tracker.Surface) {
	s.surface = surf
	s.loaded = true
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter):
			if s.surface.SettingsEditable() {
				return s.showForm()
			}
		case key.Matches(msg, keys.End):
			if s.surface.Experiment != nil {
				return s.showEndForm()
			}
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.values = settingsForm{
		strategy: tracker.Strategies[0].Key,
		days:     "14",
		reminder: "21:00",
	}
	v := s.values

	options := make([]huh.Option[string], 0, len(tracker.Strategies)+1)
	for _, st := range tracker.Strategies {
		options = append(options, huh.NewOption(st.Label, st.Key))
	}
	options = append(options, huh.NewOption("Other (describe your own)", tracker.StrategyOther))

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Strategy").Options(options...).Value(&v.strategy),
		).Title("New experiment"),
		huh.NewGroup(
			huh.NewInput().Title("Your strategy").
				CharLimit(tracker.MaxCustomStrategyLen).
				Validate(required("strategy")).
				Value(&v.custom),
		).WithHideFunc(func() bool { return v.strategy != tracker.StrategyOther }),
		huh.NewGroup(
			huh.NewText().Title("Action").
				Description("What will you do each day?").
				CharLimit(2000).
				Validate(required("action")).
				Value(&v.action),
			huh.NewInput().Title("Duration (days)").
				Validate(validateDays).
				Value(&v.days),
			huh.NewInput().Title("Reminder time (HH:MM)").
				Validate(validateReminder).
				Value(&v.reminder),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Start this experiment?").
				Description("Settings cannot be changed while it runs.").
				Affirmative("Start").
				Negative("Cancel").
				Value(&v.confirm),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	s.ending = false
	return s, s.form.Init()
}

func (s settingsModel) showEndForm() (settingsModel, tea.Cmd) {
	s.values.confirm = false
	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("End this experiment now?").
				Description("Its records are kept and stay visible in Results.").
				Affirmative("End").
				Negative("Keep going").
				Value(&s.values.confirm),
		),
	).WithShowHelp(true)

	s.formActive = true
	s.ending = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	switch s.form.State {
	case huh.StateCompleted:
		s.formActive = false
		s.form = nil
		if s.ending {
			return s, s.endExperiment(s.values.confirm)
		}
		return s, s.createExperiment(s.settings(), s.values.confirm)
	case huh.StateAborted:
		s.formActive = false
		s.form = nil
		return s, nil
	}
	return s, cmd
}

func (s settingsModel) settings() tracker.Settings {
	days, _ := strconv.Atoi(strings.TrimSpace(s.values.days))
	return tracker.Settings{
		Strategy:         s.values.strategy,
		CustomStrategy:   s.values.custom,
		Action:           s.values.action,
		DurationDays:     days,
		NotificationTime: s.values.reminder,
	}
}

func (s settingsModel) createExperiment(in tracker.Settings, confirmed bool) tea.Cmd {
	return func() tea.Msg {
		e, err := s.session.CreateExperiment(context.Background(), in, confirmed)
		if tracker.IsKind(err, tracker.KindUnconfirmed) {
			return statusMsg{text: "Experiment not started"}
		}
		if err != nil {
			return statusMsg{text: errorText(err), isError: true}
		}
		return experimentCreatedMsg{experiment: e}
	}
}

func (s settingsModel) endExperiment(confirmed bool) tea.Cmd {
	return func() tea.Msg {
		e, err := s.session.EndExperiment(context.Background(), confirmed)
		if tracker.IsKind(err, tracker.KindUnconfirmed) {
			return statusMsg{text: "Experiment continues"}
		}
		if err != nil {
			return statusMsg{text: errorText(err), isError: true}
		}
		return experimentEndedMsg{experiment: e}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Experiment")

	if s.formActive && s.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	if !s.loaded {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("Loading...")))
	}

	if s.surface.Experiment == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			"No experiment is running.",
			"",
			mutedStyle.Render("Press enter to set one up"),
		))
	}

	in := tracker.SettingsFromExperiment(s.surface.Experiment)
	strategy := tracker.StrategyLabel(in.Strategy)
	if in.Strategy == tracker.StrategyOther {
		strategy = in.CustomStrategy
	}
	e := s.surface.Experiment

	rows := []string{
		title + "  " + successStyle.Render("● running"),
		"",
		field("Strategy", highlightStyle.Render(strategy)),
		field("Action", in.Action),
		field("Duration", fmt.Sprintf("%d days", in.DurationDays)),
		field("Reminder", in.NotificationTime),
		field("Started", formatDate(e.StartAt.In(s.session.Location()))),
		field("Planned end", formatDate(e.PeriodEnd().In(s.session.Location()))),
		field("Progress", fmt.Sprintf("day %d of %d", s.surface.DaysElapsed, in.DurationDays)),
		"",
		mutedStyle.Render("Settings are locked while the experiment runs.  X: end experiment"),
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func required(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateDays(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 90 {
		return errors.New("enter a number of days between 1 and 90")
	}
	return nil
}

func validateReminder(v string) error {
	v = strings.TrimSpace(v)
	h, m, ok := strings.Cut(v, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return errors.New("use HH:MM")
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour > 23 || minute > 59 || hour < 0 || minute < 0 {
		return errors.New("use HH:MM")
	}
	return nil
}
