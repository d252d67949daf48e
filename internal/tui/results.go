package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/stats"
	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/tracker"
)

type resultsModel struct {
	session *tracker.Session
	width   int
	height  int

	experiments []store.Experiment
	selected    int
	results     *tracker.Results
	err         error
	metric      int // index into stats.Metrics

	day     int    // calendar cursor
	dayFor  string // experiment the cursor belongs to
	showDay bool

	durationChart  barchart.Model
	medianChart    barchart.Model
	interruptChart barchart.Model
}

func newResultsModel(s *tracker.Session) resultsModel {
	return resultsModel{
		session:        s,
		durationChart:  barchart.New(60, 10),
		medianChart:    barchart.New(60, 10),
		interruptChart: barchart.New(60, 10),
	}
}

func (r *resultsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	r.buildCharts()
}

type experimentsDataMsg struct {
	experiments []store.Experiment
	err         error
}

type resultsDataMsg struct {
	experimentID string
	results      *tracker.Results
	err          error
}

// refresh reloads the experiment list, then the selected results.
func (r resultsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		list, err := r.session.ListExperiments(context.Background())
		return experimentsDataMsg{experiments: list, err: err}
	}
}

func (r resultsModel) loadResults() tea.Cmd {
	id := r.selectedID()
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		res, err := r.session.Results(context.Background(), id)
		return resultsDataMsg{experimentID: id, results: res, err: err}
	}
}

// selectedID is the experiment the view shows, or "" when there is none.
func (r resultsModel) selectedID() string {
	if r.selected < 0 || r.selected >= len(r.experiments) {
		return ""
	}
	return r.experiments[r.selected].ID
}

func (r resultsModel) update(msg tea.Msg) (resultsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case experimentsDataMsg:
		if msg.err != nil {
			r.err = msg.err
			return r, nil
		}
		current := r.selectedID()
		r.experiments = msg.experiments
		r.selected = r.indexOf(current)
		if r.selected < 0 {
			r.selected = r.indexOf(tracker.DefaultSelection(r.experiments, r.session.Now()))
		}
		if r.selected < 0 {
			r.results = nil
			r.err = nil
			return r, nil
		}
		return r, r.loadResults()

	case resultsDataMsg:
		if msg.experimentID != r.selectedID() {
			return r, nil
		}
		r.results = msg.results
		r.err = msg.err
		if msg.experimentID != r.dayFor {
			r.dayFor = msg.experimentID
			r.day = r.defaultDay()
			r.showDay = false
		}
		r.clampDay()
		r.buildCharts()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			if r.selected > 0 {
				r.selected--
				return r, r.loadResults()
			}
		case key.Matches(msg, keys.Right):
			if r.selected < len(r.experiments)-1 {
				r.selected++
				return r, r.loadResults()
			}
		case key.Matches(msg, keys.Metric):
			r.metric = (r.metric + 1) % len(stats.Metrics)
			r.buildCharts()
			return r, nil
		case key.Matches(msg, keys.PrevDay):
			r.day--
			r.clampDay()
		case key.Matches(msg, keys.NextDay):
			r.day++
			r.clampDay()
		case key.Matches(msg, keys.Enter):
			if r.results != nil && len(r.results.Calendar) > 0 {
				r.showDay = !r.showDay
			}
		case key.Matches(msg, keys.Back):
			r.showDay = false
		}
	}
	return r, nil
}

// defaultDay puts the cursor on today, or the nearest end of the period.
func (r resultsModel) defaultDay() int {
	if r.results == nil || len(r.results.Calendar) == 0 {
		return 0
	}
	today := store.DayKey(r.session.Now(), r.session.Location())
	for i, d := range r.results.Calendar {
		if d.Date.Equal(today) {
			return i
		}
	}
	if today.Before(r.results.Calendar[0].Date) {
		return 0
	}
	return len(r.results.Calendar) - 1
}

func (r *resultsModel) clampDay() {
	n := 0
	if r.results != nil {
		n = len(r.results.Calendar)
	}
	r.day = max(0, min(r.day, n-1))
}

// selectedDay is the calendar cell under the cursor.
func (r resultsModel) selectedDay() (tracker.CalendarDay, bool) {
	if r.results == nil || r.day >= len(r.results.Calendar) {
		return tracker.CalendarDay{}, false
	}
	return r.results.Calendar[r.day], true
}

func (r resultsModel) indexOf(id string) int {
	for i, e := range r.experiments {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (r resultsModel) currentMetric() stats.Metric {
	return stats.Metrics[r.metric]
}

func (r *resultsModel) buildCharts() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 8
	if r.height > 40 {
		chartHeight = 12
	}

	r.durationChart = barchart.New(chartWidth, chartHeight, barchart.WithMaxValue(5))
	r.medianChart = barchart.New(chartWidth, chartHeight, barchart.WithMaxValue(5))
	r.interruptChart = barchart.New(chartWidth, chartHeight, barchart.WithMaxValue(100))
	if r.results == nil {
		return
	}

	var bars []barchart.BarData
	for _, p := range r.results.Durations.Points {
		bars = append(bars, barchart.BarData{
			Label:  p.Date.Format("1/2"),
			Values: []barchart.BarValue{{Name: formatMinutes(p.Minutes), Value: float64(p.Score), Style: barStyle}},
		})
	}
	if r.results.Durations.HasAverage {
		bars = append(bars, barchart.BarData{
			Label:  "avg",
			Values: []barchart.BarValue{{Name: "average", Value: r.results.Durations.AverageScore, Style: averageStyle}},
		})
	}
	r.durationChart.PushAll(bars)
	r.durationChart.Draw()

	tod := r.results.Metric(r.currentMetric())
	bars = nil
	for _, b := range tod.Buckets {
		value, style := 0.0, barStyle
		if b.Median != nil {
			value = *b.Median
		}
		if b.LowSample {
			style = lowBarStyle
		}
		bars = append(bars, barchart.BarData{
			Label:  shortBucket(b.Bucket),
			Values: []barchart.BarValue{{Name: b.Bucket.Label(), Value: value, Style: style}},
		})
	}
	r.medianChart.PushAll(bars)
	r.medianChart.Draw()

	bars = nil
	for _, b := range tod.Buckets {
		value := 0.0
		if b.InterruptionRate != nil {
			value = *b.InterruptionRate
		}
		bars = append(bars, barchart.BarData{
			Label:  shortBucket(b.Bucket),
			Values: []barchart.BarValue{{Name: b.Bucket.Label(), Value: value, Style: interruptBarStyle}},
		})
	}
	r.interruptChart.PushAll(bars)
	r.interruptChart.Draw()
}

func shortBucket(t store.TimeOfDay) string {
	switch t {
	case store.LateNight:
		return "0-3"
	case store.EarlyMorning:
		return "3-6"
	case store.Morning:
		return "6-9"
	case store.Daytime:
		return "9-15"
	case store.Evening:
		return "15-18"
	case store.Night:
		return "18-24"
	}
	return string(t)
}

func (r resultsModel) view() string {
	w := r.width - 4
	title := titleStyle.Render("Results")

	if r.err != nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "",
			errorStyle.Render("Could not load results."),
			mutedStyle.Render(errorText(r.err)),
		))
	}
	if len(r.experiments) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No experiments yet. Start one in the Experiment view (1)."),
		))
	}
	if r.results == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("Loading...")))
	}

	selector := mutedStyle.Render(fmt.Sprintf("‹ %d/%d ›", r.selected+1, len(r.experiments)))
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", selector)

	sections := []string{
		header, "",
		r.renderSummary(), "",
		r.renderCalendar(), "",
		subtitleStyle.Render("Duration score (1-5)"),
		r.durationChart.View(),
		r.renderAverage(), "",
		r.renderMetricTabs(),
		r.renderTimeOfDayTable(),
		"",
		subtitleStyle.Render("Median by start time"),
		r.medianChart.View(),
		"",
		subtitleStyle.Render("Interruption rate by start time (%)"),
		r.interruptChart.View(),
		"",
		mutedStyle.Render("  ←/→: experiment  [/]: day  enter: day details  m: metric  o: export"),
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (r resultsModel) renderSummary() string {
	s := r.results.Summary
	c := r.results.Completion
	loc := r.session.Location()

	status := successStyle.Render("active")
	if s.Status == tracker.StatusFinished {
		status = mutedStyle.Render("finished")
	}
	rows := []string{
		field("Strategy", highlightStyle.Render(s.Strategy)),
		field("Action", s.Action),
		field("Period", fmt.Sprintf("%s to %s (%d days)",
			s.StartAt.In(loc).Format("Jan 2"), s.PeriodEnd.In(loc).Format("Jan 2 2006"), s.DurationDays)),
		field("Status", status),
		field("Records", fmt.Sprintf("%d (%d%% of days)", s.RecordCount, s.CompletionRate)),
		field("Carried out", fmt.Sprintf("%d yes / %d no (%d%%)", c.CarriedOut, c.NotCarriedOut, c.Rate)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r resultsModel) renderCalendar() string {
	var b strings.Builder
	for _, d := range r.results.Calendar {
		switch d.Mark {
		case tracker.DayCarried:
			b.WriteString(successStyle.Render("■"))
		case tracker.DayMissed:
			b.WriteString(errorStyle.Render("■"))
		default:
			b.WriteString(mutedStyle.Render("·"))
		}
	}
	legend := mutedStyle.Render("  ") + successStyle.Render("■") + mutedStyle.Render(" done  ") +
		errorStyle.Render("■") + mutedStyle.Render(" not done  · no record")
	rows := []string{subtitleStyle.Render("Calendar"), b.String()}

	if d, ok := r.selectedDay(); ok {
		rows = append(rows, calendarCursorStyle.Render(strings.Repeat(" ", r.day)+"^"))
		label := d.Date.Format("Mon Jan 2")
		switch d.Mark {
		case tracker.DayCarried:
			label += "  done"
		case tracker.DayMissed:
			label += "  not done"
		default:
			label += "  no record"
		}
		rows = append(rows, highlightStyle.Render(label))
		if r.showDay {
			rows = append(rows, "")
			if d.Record == nil {
				rows = append(rows, mutedStyle.Render("No record for this day"))
			} else {
				rows = append(rows, renderRecord(d.Record)...)
			}
			rows = append(rows, "")
		}
	}
	rows = append(rows, legend)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r resultsModel) renderAverage() string {
	d := r.results.Durations
	if !d.HasAverage {
		return mutedStyle.Render("  No sessions recorded yet")
	}
	return averageStyle.Render(fmt.Sprintf("  average score %.1f", d.AverageScore))
}

func (r resultsModel) renderMetricTabs() string {
	var tabs []string
	for i, m := range stats.Metrics {
		if i == r.metric {
			tabs = append(tabs, activeTabStyle.Render(m.Label()))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(m.Label()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
}

func (r resultsModel) renderTimeOfDayTable() string {
	tod := r.results.Metric(r.currentMetric())

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-14s %5s %6s %6s %5s %8s %6s", "Start", "n", "mean", "median", "sd", "interr.", "trend")),
		mutedStyle.Render("  " + strings.Repeat("─", 58)),
	}
	for i, b := range tod.Buckets {
		var trend *float64
		if i < len(tod.Trend) {
			trend = tod.Trend[i]
		}
		line := fmt.Sprintf("  %-14s %5d %6s %6s %5s %8s %6s",
			b.Bucket.Label(), b.Count,
			formatFloat(b.Mean), formatFloat(b.Median), formatFloat(b.SD),
			formatPercent(b.InterruptionRate), formatFloat(trend),
		)
		if b.LowSample {
			line = mutedStyle.Render(line + " *")
		}
		rows = append(rows, line)
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  * fewer than %d records", stats.LowSampleThreshold)))
	return strings.Join(rows, "\n")
}
