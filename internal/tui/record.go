package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/tracker"
)

// recordForm mirrors tracker.RecordInput with huh-friendly types.
type recordForm struct {
	carriedOut     bool
	startedTime    store.TimeOfDay
	duration       int
	interrupted    bool
	reason         string
	concentration  int
	accomplishment int
	fatigue        int
	memo           string
	confirm        bool
}

func (f *recordForm) fill(in tracker.RecordInput) {
	*f = recordForm{
		carriedOut:     in.CarriedOut,
		startedTime:    in.StartedTime,
		duration:       in.DurationMinutes,
		interrupted:    in.Interrupted,
		reason:         in.InterruptionReason,
		concentration:  in.Concentration,
		accomplishment: in.Accomplishment,
		fatigue:        in.Fatigue,
		memo:           in.Memo,
	}
}

func (f *recordForm) input() tracker.RecordInput {
	return tracker.RecordInput{
		CarriedOut:         f.carriedOut,
		StartedTime:        f.startedTime,
		DurationMinutes:    f.duration,
		Interrupted:        f.interrupted,
		InterruptionReason: f.reason,
		Concentration:      f.concentration,
		Accomplishment:     f.accomplishment,
		Fatigue:            f.fatigue,
		Memo:               f.memo,
	}
}

type recordModel struct {
	session *tracker.Session
	width   int
	height  int

	surface tracker.Surface
	loaded  bool

	formActive bool
	form       *huh.Form
	values     *recordForm
}

func newRecordModel(s *tracker.Session) recordModel {
	return recordModel{
		session: s,
		values:  &recordForm{},
	}
}

func (r *recordModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

func (r *recordModel) setSurface(surf tracker.Surface) {
	r.surface = surf
	r.loaded = true
}

func (r recordModel) update(msg tea.Msg) (recordModel, tea.Cmd) {
	if r.formActive && r.form != nil {
		return r.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter):
			if r.surface.RecordEditable() {
				return r.showForm(tracker.NewRecordInput(r.surface.Experiment))
			}
		case key.Matches(msg, keys.Edit):
			if r.surface.RecordLocked() {
				return r.showForm(tracker.InputFromRecord(r.surface.TodayRecord))
			}
		}
	}
	return r, nil
}

func (r recordModel) showForm(in tracker.RecordInput) (recordModel, tea.Cmd) {
	r.values.fill(in)
	v := r.values

	var started []huh.Option[store.TimeOfDay]
	for _, t := range store.TimesOfDay {
		started = append(started, huh.NewOption(t.Label(), t))
	}
	var durations []huh.Option[int]
	for _, m := range store.DurationOptions {
		durations = append(durations, huh.NewOption(formatMinutes(m), m))
	}

	notCarried := func() bool { return !v.carriedOut }

	r.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("Did you carry out the action today?").
				Affirmative("Yes").
				Negative("No").
				Value(&v.carriedOut),
		).Title("Today's record"),
		huh.NewGroup(
			huh.NewSelect[store.TimeOfDay]().Title("When did you start?").Options(started...).Value(&v.startedTime),
			huh.NewSelect[int]().Title("How long?").Options(durations...).Value(&v.duration),
			huh.NewConfirm().Title("Were you interrupted?").
				Affirmative("Yes").
				Negative("No").
				Value(&v.interrupted),
		).WithHideFunc(notCarried),
		huh.NewGroup(
			huh.NewInput().Title("What interrupted you?").
				CharLimit(50).
				Value(&v.reason),
		).WithHideFunc(func() bool { return !v.carriedOut || !v.interrupted }),
		huh.NewGroup(
			scoreSelect("Concentration", &v.concentration),
			scoreSelect("Accomplishment", &v.accomplishment),
			scoreSelect("Fatigue", &v.fatigue),
		).WithHideFunc(notCarried),
		huh.NewGroup(
			huh.NewText().Title("Memo").CharLimit(2000).Value(&v.memo),
			huh.NewConfirm().Title("Save today's record?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&v.confirm),
		),
	).WithShowHelp(true).WithShowErrors(true)

	r.formActive = true
	return r, r.form.Init()
}

func scoreSelect(title string, value *int) *huh.Select[int] {
	opts := make([]huh.Option[int], 0, 5)
	for i := 1; i <= 5; i++ {
		opts = append(opts, huh.NewOption(strconv.Itoa(i), i))
	}
	return huh.NewSelect[int]().Title(title + " (1-5)").Options(opts...).Value(value)
}

func (r recordModel) updateForm(msg tea.Msg) (recordModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			r.formActive = false
			r.form = nil
			return r, nil
		}
	}

	form, cmd := r.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		r.form = f
	}

	switch r.form.State {
	case huh.StateCompleted:
		r.formActive = false
		r.form = nil
		return r, r.save(r.values.input(), r.values.confirm)
	case huh.StateAborted:
		r.formActive = false
		r.form = nil
		return r, nil
	}
	return r, cmd
}

func (r recordModel) save(in tracker.RecordInput, confirmed bool) tea.Cmd {
	return func() tea.Msg {
		rec, err := r.session.SaveToday(context.Background(), in, confirmed)
		if tracker.IsKind(err, tracker.KindUnconfirmed) {
			return statusMsg{text: "Record not saved"}
		}
		if err != nil {
			return statusMsg{text: errorText(err), isError: true}
		}
		return recordSavedMsg{record: rec}
	}
}

func (r recordModel) view() string {
	w := r.width - 4
	title := titleStyle.Render("Record")

	if r.formActive && r.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", r.form.View()),
		)
	}

	if !r.loaded {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("Loading...")))
	}

	if !r.surface.RecordEnabled() {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("Recording is available while an experiment runs."),
			mutedStyle.Render("Set one up in the Experiment view (1)."),
		))
	}

	e := r.surface.Experiment
	rows := []string{
		title,
		"",
		field("Action", highlightStyle.Render(e.Action)),
		field("Date", formatDate(r.surface.Today)),
		field("Progress", fmt.Sprintf("day %d of %d", r.surface.DaysElapsed, e.DurationDays)),
		"",
	}

	if r.surface.RecordLocked() {
		rows = append(rows, successStyle.Render("✓ Recorded today"), "")
		rows = append(rows, renderRecord(r.surface.TodayRecord)...)
		rows = append(rows, "", mutedStyle.Render("e: edit today's record"))
	} else {
		rows = append(rows,
			warningStyle.Render("Not recorded yet"),
			"",
			mutedStyle.Render("Press enter to record today"),
		)
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderRecord(rec *store.DailyRecord) []string {
	var rows []string
	if ex := rec.Execution; ex != nil {
		rows = append(rows,
			field("Carried out", successStyle.Render("Yes")),
			field("Started", ex.StartedTime.Label()),
			field("Duration", formatMinutes(ex.DurationMinutes)),
		)
		if ex.Interruption != nil {
			reason := ex.Interruption.Reason
			if reason == "" {
				reason = "yes"
			}
			rows = append(rows, field("Interrupted", warningStyle.Render(reason)))
		} else {
			rows = append(rows, field("Interrupted", "No"))
		}
		rows = append(rows,
			field("Concentration", strconv.Itoa(ex.Concentration)),
			field("Accomplishment", strconv.Itoa(ex.Accomplishment)),
			field("Fatigue", strconv.Itoa(ex.Fatigue)),
		)
	} else {
		rows = append(rows, field("Carried out", errorStyle.Render("No")))
	}
	if rec.Memo != "" {
		rows = append(rows, field("Memo", rec.Memo))
	}
	return rows
}
