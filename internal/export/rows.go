package export

import (
	"strconv"

	"github.com/sadopc/habitlab/internal/store"
)

// Header is the column order of exported rows.
var Header = []string{
	"Date", "Strategy", "Action", "CarriedOut", "StartedTime", "Duration",
	"Interrupted", "Reason", "Concentration", "Accomplishment", "Fatigue", "Memo",
}

// Row is one daily record, flattened. Detail fields are zero when the action
// was not carried out.
type Row struct {
	Date               string `json:"date"`
	Strategy           string `json:"strategy"`
	Action             string `json:"action"`
	CarriedOut         bool   `json:"carried_out"`
	StartedTime        string `json:"started_time,omitempty"`
	DurationMinutes    int    `json:"duration_minutes,omitempty"`
	Interrupted        *bool  `json:"interrupted,omitempty"`
	InterruptionReason string `json:"interruption_reason,omitempty"`
	Concentration      int    `json:"concentration,omitempty"`
	Accomplishment     int    `json:"accomplishment,omitempty"`
	Fatigue            int    `json:"fatigue,omitempty"`
	Memo               string `json:"memo,omitempty"`
}

// BuildRows returns one row per record, in record order.
func BuildRows(e store.Experiment, records []store.DailyRecord, strategy string) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{
			Date:     r.RecordedDate.Format("2006-01-02"),
			Strategy: strategy,
			Action:   e.Action,
			Memo:     r.Memo,
		}
		if x := r.Execution; x != nil {
			interrupted := x.Interrupted()
			row.CarriedOut = true
			row.StartedTime = x.StartedTime.Label()
			row.DurationMinutes = x.DurationMinutes
			row.Interrupted = &interrupted
			if x.Interruption != nil {
				row.InterruptionReason = x.Interruption.Reason
			}
			row.Concentration = x.Concentration
			row.Accomplishment = x.Accomplishment
			row.Fatigue = x.Fatigue
		}
		rows = append(rows, row)
	}
	return rows
}

// Fields renders the row in Header order.
func (r Row) Fields() []string {
	f := []string{r.Date, r.Strategy, r.Action, yesNo(r.CarriedOut), "", "", "", "", "", "", "", r.Memo}
	if r.CarriedOut {
		f[4] = r.StartedTime
		f[5] = itoa(r.DurationMinutes)
		if r.Interrupted != nil {
			f[6] = yesNo(*r.Interrupted)
		}
		f[7] = r.InterruptionReason
		f[8] = itoa(r.Concentration)
		f[9] = itoa(r.Accomplishment)
		f[10] = itoa(r.Fatigue)
	}
	return f
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
