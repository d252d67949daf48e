package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/tracker"
)

func newStatusCmd(env func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current experiment and today's record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := env()
			s, err := e.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.SignOut()

			surf, err := s.Surface(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := e.store.GetAllSettings(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeStatus(out, s.UserID(), surf, e.loc)
			for _, st := range settings {
				fmt.Fprintf(out, "%s: %s\n", st.Key, st.Value)
			}
			return nil
		},
	}
}

func writeStatus(out io.Writer, userID string, surf tracker.Surface, loc *time.Location) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "User:\t%s\n", userID)
	fmt.Fprintf(w, "State:\t%s\n", surf.State)
	if surf.Experiment == nil {
		fmt.Fprintln(w, "\t(start an experiment with 'habitlab')")
		return
	}

	x := surf.Experiment
	fmt.Fprintf(w, "Strategy:\t%s\n", tracker.StrategyLabel(x.Strategy))
	fmt.Fprintf(w, "Action:\t%s\n", x.Action)
	fmt.Fprintf(w, "Progress:\tday %d of %d\n", surf.DaysElapsed, x.DurationDays)
	fmt.Fprintf(w, "Reminder:\t%s (%s)\n", x.NotificationTime, loc.String())
	fmt.Fprintf(w, "Today:\t%s\n", surf.Today.Format("2006-01-02"))

	rec := surf.TodayRecord
	if rec == nil {
		fmt.Fprintln(w, "Record:\tnot recorded yet")
		return
	}
	fmt.Fprintln(w, "Record:\t"+describeRecord(rec))
	if rec.Memo != "" {
		fmt.Fprintf(w, "Memo:\t%s\n", rec.Memo)
	}
}

func describeRecord(rec *store.DailyRecord) string {
	ex := rec.Execution
	if ex == nil {
		return "not carried out"
	}
	s := fmt.Sprintf("carried out, %s, %d min, concentration %d, accomplishment %d, fatigue %d",
		ex.StartedTime.Label(), ex.DurationMinutes, ex.Concentration, ex.Accomplishment, ex.Fatigue)
	if ex.Interruption != nil {
		s += ", interrupted"
		if ex.Interruption.Reason != "" {
			s += " (" + ex.Interruption.Reason + ")"
		}
	}
	return s
}
