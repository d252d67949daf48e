package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/tracker"
)

// viewState represents the currently active view.
type viewState int

const (
	viewSettings viewState = iota
	viewRecord
	viewResults
	viewLibrary
)

var viewNames = []string{"Experiment", "Record", "Results", "Library"}

// --- Messages ---

type surfaceMsg struct {
	surface tracker.Surface
	err     error
}

type experimentCreatedMsg struct {
	experiment *store.Experiment
}

type experimentEndedMsg struct {
	experiment *store.Experiment
}

type recordSavedMsg struct {
	record *store.DailyRecord
}

type sessionEventMsg struct {
	event tracker.Event
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

// errorText renders err for the status bar. Validation failures list their
// fields.
func errorText(err error) string {
	if errors.Is(err, tracker.ErrNotSignedIn) {
		return "Not signed in"
	}
	te, ok := tracker.AsError(err)
	if !ok {
		return err.Error()
	}
	switch te.Kind {
	case tracker.KindValidation:
		keys := make([]string, 0, len(te.Fields))
		for k := range te.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " " + te.Fields[k]
		}
		return "Check the form: " + strings.Join(parts, ", ")
	case tracker.KindStoreUnavailable:
		return "Could not reach the database. Try again."
	}
	return capitalize(te.Message)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatDate(t time.Time) string {
	return t.Format("Mon, Jan 2 2006")
}

func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v)
}

func formatMinutes(m int) string {
	if m >= 60 && m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%d min", m)
}

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
