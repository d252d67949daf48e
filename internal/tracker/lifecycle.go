package tracker

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sadopc/habitlab/internal/store"
)

// Settings is the experiment form. For StrategyOther the custom text becomes
// the persisted strategy.
type Settings struct {
	Strategy         string `json:"strategy" validate:"required,strategy"`
	CustomStrategy   string `json:"custom_strategy" validate:"required_if=Strategy other,max=50"`
	Action           string `json:"action" validate:"required,max=2000"`
	DurationDays     int    `json:"duration_days" validate:"required,min=1,max=90"`
	NotificationTime string `json:"notification_time" validate:"required,hhmm"`
}

func (s Settings) normalized() Settings {
	s.Strategy = strings.TrimSpace(s.Strategy)
	s.CustomStrategy = strings.TrimSpace(s.CustomStrategy)
	s.Action = strings.TrimSpace(s.Action)
	s.NotificationTime = strings.TrimSpace(s.NotificationTime)
	if s.Strategy != StrategyOther {
		s.CustomStrategy = ""
	}
	return s
}

func (s Settings) persistedStrategy() string {
	if s.Strategy == StrategyOther {
		return s.CustomStrategy
	}
	return s.Strategy
}

// SettingsFromExperiment fills the read-only settings form from e.
func SettingsFromExperiment(e *store.Experiment) Settings {
	s := Settings{
		Strategy:         e.Strategy,
		Action:           e.Action,
		DurationDays:     e.DurationDays,
		NotificationTime: e.NotificationTime,
	}
	if _, ok := LookupStrategy(e.Strategy); !ok {
		s.Strategy = StrategyOther
		s.CustomStrategy = e.Strategy
	}
	return s
}

type State int

const (
	StateNoActive State = iota
	StateActiveNoRecord
	StateActiveRecorded
)

func (s State) String() string {
	switch s {
	case StateActiveNoRecord:
		return "active, not recorded today"
	case StateActiveRecorded:
		return "active, recorded today"
	}
	return "no active experiment"
}

// Surface is what the user may do right now.
type Surface struct {
	State              State
	Experiment         *store.Experiment
	Today              time.Time
	TodayRecord        *store.DailyRecord
	DaysElapsed        int
	DefaultStartedTime store.TimeOfDay
}

// SettingsEditable is true only without an active experiment.
func (s Surface) SettingsEditable() bool { return s.State == StateNoActive }

// RecordEnabled is true while an experiment is active.
func (s Surface) RecordEnabled() bool { return s.State != StateNoActive }

// RecordEditable is true when today's record can be written without an
// explicit edit action.
func (s Surface) RecordEditable() bool { return s.State == StateActiveNoRecord }

// RecordLocked is true when today's record exists and is shown read-only.
func (s Surface) RecordLocked() bool { return s.State == StateActiveRecorded }

// Lifecycle creates, resolves and ends experiments.
type Lifecycle struct {
	deps Deps
}

func NewLifecycle(deps Deps) *Lifecycle {
	return &Lifecycle{deps: deps}
}

// ResolveActive returns the user's active experiment, or nil when there is
// none. If the store holds several, the oldest is used and a warning logged.
func (l *Lifecycle) ResolveActive(ctx context.Context, userID string) (*store.Experiment, error) {
	active, err := l.deps.Repo.FindActiveExperiments(ctx, userID, l.deps.now())
	if err != nil {
		l.deps.logger().Error("resolve active experiment", "user_id", userID, "error", err)
		return nil, newStoreError("resolve active experiment", err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	if len(active) > 1 {
		ids := make([]string, len(active))
		for i, e := range active {
			ids[i] = e.ID
		}
		l.deps.logger().Warn("multiple active experiments, using the first",
			"user_id", userID, "count", len(active), "experiment_ids", ids)
	}
	e := active[0]
	return &e, nil
}

// Surface resolves the user's current state.
func (l *Lifecycle) Surface(ctx context.Context, userID string) (Surface, error) {
	today := l.deps.today()
	e, err := l.ResolveActive(ctx, userID)
	if err != nil {
		return Surface{}, err
	}
	if e == nil {
		return Surface{State: StateNoActive, Today: today}, nil
	}

	rec, err := l.deps.Repo.FindRecord(ctx, userID, e.ID, today)
	if err != nil {
		return Surface{}, newStoreError("load today's record", err)
	}
	s := Surface{
		State:              StateActiveNoRecord,
		Experiment:         e,
		Today:              today,
		TodayRecord:        rec,
		DaysElapsed:        DaysElapsed(e.StartAt, l.deps.now()),
		DefaultStartedTime: store.DefaultStartedTime(e.NotificationTime),
	}
	if rec != nil {
		s.State = StateActiveRecorded
	}
	return s, nil
}

// DaysElapsed is the 1-based day number of now within an experiment that
// started at start.
func DaysElapsed(start, now time.Time) int {
	d := int(math.Ceil(now.Sub(start).Hours() / 24))
	if d < 1 {
		return 1
	}
	return d
}

// Create starts a new experiment for userID from in.
func (l *Lifecycle) Create(ctx context.Context, userID string, in Settings, confirmed bool) (*store.Experiment, error) {
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, newUnconfirmedError("saving settings")
	}

	active, err := l.ResolveActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, newConflictError("an experiment is already active", store.ErrActiveExperimentExists)
	}

	now := l.deps.now()
	e := &store.Experiment{
		UserID:           userID,
		Strategy:         in.persistedStrategy(),
		Action:           in.Action,
		DurationDays:     in.DurationDays,
		StartAt:          now,
		EndAt:            now.AddDate(0, 0, in.DurationDays),
		NotificationTime: in.NotificationTime,
		CreatedAt:        now,
	}
	id, err := l.deps.Repo.CreateExperiment(ctx, e)
	if errors.Is(err, store.ErrActiveExperimentExists) {
		return nil, newConflictError("an experiment is already active", err)
	}
	if err != nil {
		l.deps.logger().Error("create experiment", "user_id", userID, "error", err)
		return nil, newStoreError("create experiment", err)
	}
	e.ID = id
	l.deps.Metrics.ExperimentEvent("created")
	l.deps.logger().Info("experiment created", "user_id", userID, "experiment_id", id, "duration_days", e.DurationDays)
	return e, nil
}

// End stops the user's active experiment now.
func (l *Lifecycle) End(ctx context.Context, userID string, confirmed bool) (*store.Experiment, error) {
	if !confirmed {
		return nil, newUnconfirmedError("ending the experiment")
	}
	e, err := l.ResolveActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, newNotFoundError("no active experiment")
	}

	now := l.deps.now()
	err = l.deps.Repo.EndExperiment(ctx, e.ID, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("no active experiment")
	}
	if err != nil {
		l.deps.logger().Error("end experiment", "user_id", userID, "experiment_id", e.ID, "error", err)
		return nil, newStoreError("end experiment", err)
	}
	e.EndAt = now
	l.deps.Metrics.ExperimentEvent("ended")
	l.deps.logger().Info("experiment ended", "user_id", userID, "experiment_id", e.ID)
	return e, nil
}
