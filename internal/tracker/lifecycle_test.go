package tracker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/habitlab/internal/store"
)

// TestCreate_Validation verifies field-level messages and that nothing is
// written for invalid input.
func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"empty strategy", func(s *Settings) { s.Strategy = "" }, "strategy"},
		{"unknown strategy", func(s *Settings) { s.Strategy = "magic" }, "strategy"},
		{"other without text", func(s *Settings) { s.Strategy = StrategyOther }, "custom_strategy"},
		{"other text too long", func(s *Settings) {
			s.Strategy = StrategyOther
			s.CustomStrategy = strings.Repeat("x", 51)
		}, "custom_strategy"},
		{"blank action", func(s *Settings) { s.Action = "   " }, "action"},
		{"action too long", func(s *Settings) { s.Action = strings.Repeat("あ", 2001) }, "action"},
		{"zero duration", func(s *Settings) { s.DurationDays = 0 }, "duration_days"},
		{"duration above 90", func(s *Settings) { s.DurationDays = 91 }, "duration_days"},
		{"missing time", func(s *Settings) { s.NotificationTime = "" }, "notification_time"},
		{"bad hour", func(s *Settings) { s.NotificationTime = "25:00" }, "notification_time"},
		{"bad format", func(s *Settings) { s.NotificationTime = "7:30" }, "notification_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validSettings()
			tt.mutate(&in)

			_, err := f.lifecycle().Create(context.Background(), "u1", in, true)
			require.Error(t, err)
			te, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindValidation, te.Kind)
			assert.Contains(t, te.Fields, tt.field)
			assert.Zero(t, f.repo.writes.Load(), "no store call on validation failure")
		})
	}
}

func TestCreate_ActionAtLimitAccepted(t *testing.T) {
	f := newFixture(t)
	in := validSettings()
	in.Action = strings.Repeat("あ", 2000)
	_, err := f.lifecycle().Create(context.Background(), "u1", in, true)
	require.NoError(t, err)
}

func TestCreate_Unconfirmed(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle().Create(context.Background(), "u1", validSettings(), false)
	assert.True(t, IsKind(err, KindUnconfirmed))
	assert.Zero(t, f.repo.writes.Load())

	active, err := f.lifecycle().ResolveActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)
	e := f.createExperiment(t, "u1")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, f.clock.now, e.StartAt)
	assert.Equal(t, f.clock.now.AddDate(0, 0, 10), e.EndAt)

	active, err := f.lifecycle().ResolveActive(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, e.ID, active.ID)
}

func TestCreate_OtherStoresCustomText(t *testing.T) {
	f := newFixture(t)
	in := validSettings()
	in.Strategy = StrategyOther
	in.CustomStrategy = "  Tell a friend  "

	e, err := f.lifecycle().Create(context.Background(), "u1", in, true)
	require.NoError(t, err)
	assert.Equal(t, "Tell a friend", e.Strategy)

	back := SettingsFromExperiment(e)
	assert.Equal(t, StrategyOther, back.Strategy)
	assert.Equal(t, "Tell a friend", back.CustomStrategy)
}

func TestCreate_ConflictWhenActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createExperiment(t, "u1")

	_, err := f.lifecycle().Create(ctx, "u1", validSettings(), true)
	assert.True(t, IsKind(err, KindConflict))

	active, err := f.store.FindActiveExperiments(ctx, "u1", f.clock.now)
	require.NoError(t, err)
	assert.Len(t, active, 1, "exactly one active experiment")
}

func TestCreate_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failWrites = errBackend

	_, err := f.lifecycle().Create(context.Background(), "u1", validSettings(), true)
	assert.True(t, IsKind(err, KindStoreUnavailable))
	assert.ErrorIs(t, err, errBackend)
}

func TestEnd_ThenResolveReturnsNone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.createExperiment(t, "u1")
	f.clock.Advance(time.Hour)

	ended, err := f.lifecycle().End(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, e.ID, ended.ID)
	assert.Equal(t, f.clock.now, ended.EndAt)

	active, err := f.lifecycle().ResolveActive(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestEnd_Unconfirmed(t *testing.T) {
	f := newFixture(t)
	f.createExperiment(t, "u1")
	before := f.repo.writes.Load()

	_, err := f.lifecycle().End(context.Background(), "u1", false)
	assert.True(t, IsKind(err, KindUnconfirmed))
	assert.Equal(t, before, f.repo.writes.Load())
}

func TestEnd_NoActive(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle().End(context.Background(), "u1", true)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestExpiry_DeactivatesNaturally(t *testing.T) {
	f := newFixture(t)
	f.createExperiment(t, "u1")
	f.clock.Advance(10 * 24 * time.Hour)

	active, err := f.lifecycle().ResolveActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, active, "endAt == now is no longer active")
}

// multiActiveRepo reports two active experiments, as a corrupted store would.
type multiActiveRepo struct {
	Repository
}

func (multiActiveRepo) FindActiveExperiments(context.Context, string, time.Time) ([]store.Experiment, error) {
	return []store.Experiment{{ID: "first"}, {ID: "second"}}, nil
}

func TestResolveActive_ToleratesMultiple(t *testing.T) {
	l := NewLifecycle(Deps{Repo: multiActiveRepo{}})
	e, err := l.ResolveActive(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "first", e.ID)
}

func TestSurface_States(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.lifecycle()

	s, err := l.Surface(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateNoActive, s.State)
	assert.True(t, s.SettingsEditable())
	assert.False(t, s.RecordEnabled())

	f.createExperiment(t, "u1")
	s, err = l.Surface(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateActiveNoRecord, s.State)
	assert.False(t, s.SettingsEditable())
	assert.True(t, s.RecordEditable())
	assert.Equal(t, store.Morning, s.DefaultStartedTime)
	assert.Equal(t, 1, s.DaysElapsed)

	_, err = f.records().SaveToday(ctx, "u1", s.Experiment.ID, carriedOutInput(), true)
	require.NoError(t, err)
	s, err = l.Surface(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateActiveRecorded, s.State)
	assert.True(t, s.RecordLocked())
	require.NotNil(t, s.TodayRecord)

	_, err = l.End(ctx, "u1", true)
	require.NoError(t, err)
	s, err = l.Surface(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateNoActive, s.State)
}

func TestDaysElapsed(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysElapsed(start, start))
	assert.Equal(t, 1, DaysElapsed(start, start.Add(time.Hour)))
	assert.Equal(t, 2, DaysElapsed(start, start.Add(25*time.Hour)))
	assert.Equal(t, 3, DaysElapsed(start, start.Add(48*time.Hour+time.Second)))
}

func TestSettingsFromExperiment_KnownStrategy(t *testing.T) {
	s := SettingsFromExperiment(&store.Experiment{
		Strategy: "precommitment", Action: "run", DurationDays: 30, NotificationTime: "06:00",
	})
	assert.Equal(t, "precommitment", s.Strategy)
	assert.Empty(t, s.CustomStrategy)
	assert.Equal(t, 30, s.DurationDays)
}

func TestErrorMessageIncludesFields(t *testing.T) {
	err := newValidationError(map[string]string{"b": "is required", "a": "must be at most 5"})
	assert.Equal(t, "invalid input (a: must be at most 5; b: is required)", err.Error())
}
