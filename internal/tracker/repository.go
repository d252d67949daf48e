package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/telemetry"
)

// Repository is the persistence the tracker needs. *store.Store implements it.
type Repository interface {
	FindActiveExperiments(ctx context.Context, userID string, now time.Time) ([]store.Experiment, error)
	CreateExperiment(ctx context.Context, e *store.Experiment) (string, error)
	EndExperiment(ctx context.Context, id string, now time.Time) error
	GetExperiment(ctx context.Context, id string) (*store.Experiment, error)
	ListExperiments(ctx context.Context, userID string) ([]store.Experiment, error)
	FindRecord(ctx context.Context, userID, experimentID string, day time.Time) (*store.DailyRecord, error)
	UpsertRecord(ctx context.Context, r *store.DailyRecord) (string, error)
	ListRecords(ctx context.Context, userID, experimentID string) ([]store.DailyRecord, error)
}

var _ Repository = (*store.Store)(nil)

// Deps are the collaborators shared by the tracker components. Zero values
// fall back to time.Now, time.Local and slog.Default.
type Deps struct {
	Repo     Repository
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Now      func() time.Time
	Location *time.Location
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}

// today is local midnight of the current date.
func (d Deps) today() time.Time {
	return store.DayKey(d.now(), d.location())
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
