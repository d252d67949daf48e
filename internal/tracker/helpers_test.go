package tracker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadopc/habitlab/internal/store"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// countingRepo wraps a Repository and counts calls.
type countingRepo struct {
	Repository
	writes      atomic.Int32
	recordLists atomic.Int32
	failWrites  error
}

func (r *countingRepo) CreateExperiment(ctx context.Context, e *store.Experiment) (string, error) {
	r.writes.Add(1)
	if r.failWrites != nil {
		return "", r.failWrites
	}
	return r.Repository.CreateExperiment(ctx, e)
}

func (r *countingRepo) EndExperiment(ctx context.Context, id string, now time.Time) error {
	r.writes.Add(1)
	if r.failWrites != nil {
		return r.failWrites
	}
	return r.Repository.EndExperiment(ctx, id, now)
}

func (r *countingRepo) UpsertRecord(ctx context.Context, rec *store.DailyRecord) (string, error) {
	r.writes.Add(1)
	if r.failWrites != nil {
		return "", r.failWrites
	}
	return r.Repository.UpsertRecord(ctx, rec)
}

func (r *countingRepo) ListRecords(ctx context.Context, userID, experimentID string) ([]store.DailyRecord, error) {
	r.recordLists.Add(1)
	return r.Repository.ListRecords(ctx, userID, experimentID)
}

var errBackend = errors.New("disk on fire")

type fixture struct {
	repo  *countingRepo
	store *store.Store
	clock *testClock
	deps  Deps
	cache *RecordCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.SetLocation(time.UTC)

	clock := &testClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	repo := &countingRepo{Repository: s}
	return &fixture{
		repo:  repo,
		store: s,
		clock: clock,
		deps:  Deps{Repo: repo, Now: clock.Now, Location: time.UTC},
		cache: NewRecordCache(nil),
	}
}

func (f *fixture) lifecycle() *Lifecycle { return NewLifecycle(f.deps) }

func (f *fixture) records() *RecordManager { return NewRecordManager(f.deps, f.cache) }

func (f *fixture) aggregator() *Aggregator { return NewAggregator(f.deps, f.cache) }

func validSettings() Settings {
	return Settings{
		Strategy:         "environment",
		Action:           "Read ten pages",
		DurationDays:     10,
		NotificationTime: "07:30",
	}
}

func (f *fixture) createExperiment(t *testing.T, userID string) *store.Experiment {
	t.Helper()
	e, err := f.lifecycle().Create(context.Background(), userID, validSettings(), true)
	require.NoError(t, err)
	return e
}

func carriedOutInput() RecordInput {
	return RecordInput{
		CarriedOut:         true,
		StartedTime:        store.Morning,
		DurationMinutes:    30,
		Interrupted:        true,
		InterruptionReason: "doorbell",
		Concentration:      4,
		Accomplishment:     3,
		Fatigue:            2,
		Memo:               "ok",
	}
}
