package tracker

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadopc/habitlab/internal/export"
	"github.com/sadopc/habitlab/internal/stats"
	"github.com/sadopc/habitlab/internal/store"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

type Summary struct {
	ExperimentID   string
	Strategy       string // display label
	Action         string
	StartAt        time.Time
	PeriodEnd      time.Time
	EndAt          time.Time
	DurationDays   int
	RecordCount    int
	CompletionRate int // percent
	Status         Status
}

// Completion splits the records by whether the action was carried out.
type Completion struct {
	CarriedOut    int
	NotCarriedOut int
	Rate          int // percent of records carried out
}

type DurationPoint struct {
	Date    time.Time
	Minutes int
	Score   int // 0 when the duration has no score
}

type Durations struct {
	Points       []DurationPoint
	AverageScore float64
	HasAverage   bool
}

type DayMark int

const (
	DayNone DayMark = iota
	DayCarried
	DayMissed
)

type CalendarDay struct {
	Date   time.Time
	Mark   DayMark
	Record *store.DailyRecord // nil when DayNone
}

// Results is everything the results view shows for one experiment.
type Results struct {
	Experiment store.Experiment
	Records    []store.DailyRecord // ascending by date
	Summary    Summary
	Completion Completion
	Durations  Durations
	Calendar   []CalendarDay
	TimeOfDay  []stats.TimeOfDayStats // one per stats.Metrics
}

// Metric returns the time-of-day stats for m.
func (r *Results) Metric(m stats.Metric) stats.TimeOfDayStats {
	for _, s := range r.TimeOfDay {
		if s.Metric == m {
			return s
		}
	}
	return stats.ComputeTimeOfDay(nil, m)
}

// Aggregator builds results from cached record lists.
type Aggregator struct {
	deps  Deps
	cache *RecordCache
}

func NewAggregator(deps Deps, cache *RecordCache) *Aggregator {
	return &Aggregator{deps: deps, cache: cache}
}

// ListExperiments returns the user's experiments, newest first.
func (a *Aggregator) ListExperiments(ctx context.Context, userID string) ([]store.Experiment, error) {
	list, err := a.deps.Repo.ListExperiments(ctx, userID)
	if err != nil {
		return nil, newStoreError("list experiments", err)
	}
	return list, nil
}

// DefaultSelection picks the experiment the results view opens on: the
// active one, else the newest. It returns "" for an empty list.
func DefaultSelection(experiments []store.Experiment, now time.Time) string {
	for _, e := range experiments {
		if e.Active(now) {
			return e.ID
		}
	}
	if len(experiments) > 0 {
		return experiments[0].ID
	}
	return ""
}

// Results loads the experiment and its records concurrently and derives
// every figure of the results view.
func (a *Aggregator) Results(ctx context.Context, userID, experimentID string) (*Results, error) {
	e, records, err := a.load(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	return BuildResults(*e, records, a.deps.now(), a.deps.location()), nil
}

// ExportRows returns the export rows of one experiment.
func (a *Aggregator) ExportRows(ctx context.Context, userID, experimentID string) ([]export.Row, error) {
	e, records, err := a.load(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	return export.BuildRows(*e, records, StrategyLabel(e.Strategy)), nil
}

func (a *Aggregator) load(ctx context.Context, userID, experimentID string) (*store.Experiment, []store.DailyRecord, error) {
	var (
		e       *store.Experiment
		records []store.DailyRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		e, err = a.deps.Repo.GetExperiment(gctx, experimentID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = a.records(gctx, userID, experimentID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, newNotFoundError("experiment not found")
		}
		a.deps.logger().Warn("load results", "experiment_id", experimentID, "error", err)
		return nil, nil, newStoreError("load results", err)
	}
	if e.UserID != userID {
		return nil, nil, newNotFoundError("experiment not found")
	}
	return e, records, nil
}

func (a *Aggregator) records(ctx context.Context, userID, experimentID string) ([]store.DailyRecord, error) {
	if records, ok := a.cache.Get(userID, experimentID); ok {
		return records, nil
	}
	version := a.cache.Version(experimentID)
	records, err := a.deps.Repo.ListRecords(ctx, userID, experimentID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordedDate.Before(records[j].RecordedDate)
	})
	a.cache.Put(userID, experimentID, version, records)
	return records, nil
}

// BuildResults derives the results of e from records sorted by date.
func BuildResults(e store.Experiment, records []store.DailyRecord, now time.Time, loc *time.Location) *Results {
	r := &Results{Experiment: e, Records: records}

	status := StatusActive
	if e.EndAt.Before(now) {
		status = StatusFinished
	}
	r.Summary = Summary{
		ExperimentID:   e.ID,
		Strategy:       StrategyLabel(e.Strategy),
		Action:         e.Action,
		StartAt:        e.StartAt,
		PeriodEnd:      e.PeriodEnd(),
		EndAt:          e.EndAt,
		DurationDays:   e.DurationDays,
		RecordCount:    len(records),
		CompletionRate: stats.CompletionRate(len(records), e.DurationDays),
		Status:         status,
	}

	var minutes []int
	for _, rec := range records {
		if rec.Execution == nil {
			r.Completion.NotCarriedOut++
			continue
		}
		r.Completion.CarriedOut++
		score, _ := stats.DurationScore(rec.Execution.DurationMinutes)
		r.Durations.Points = append(r.Durations.Points, DurationPoint{
			Date:    rec.RecordedDate,
			Minutes: rec.Execution.DurationMinutes,
			Score:   score,
		})
		minutes = append(minutes, rec.Execution.DurationMinutes)
	}
	r.Completion.Rate = stats.Percent(r.Completion.CarriedOut, len(records))
	r.Durations.AverageScore, r.Durations.HasAverage = stats.AverageScore(minutes)

	r.Calendar = buildCalendar(e, records, loc)

	for _, m := range stats.Metrics {
		r.TimeOfDay = append(r.TimeOfDay, stats.ComputeTimeOfDay(records, m))
	}
	return r
}

// buildCalendar has one cell per day of the planned period.
func buildCalendar(e store.Experiment, records []store.DailyRecord, loc *time.Location) []CalendarDay {
	const layout = "2006-01-02"
	byDay := make(map[string]*store.DailyRecord, len(records))
	for i := range records {
		byDay[records[i].RecordedDate.In(loc).Format(layout)] = &records[i]
	}

	first := store.DayKey(e.StartAt, loc)
	days := make([]CalendarDay, 0, e.DurationDays)
	for i := 0; i < e.DurationDays; i++ {
		d := first.AddDate(0, 0, i)
		day := CalendarDay{Date: d, Record: byDay[d.Format(layout)]}
		switch {
		case day.Record == nil:
		case day.Record.CarriedOut():
			day.Mark = DayCarried
		default:
			day.Mark = DayMissed
		}
		days = append(days, day)
	}
	return days
}
