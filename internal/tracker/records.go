package tracker

import (
	"context"
	"errors"
	"strings"

	"github.com/sadopc/habitlab/internal/store"
)

// RecordInput is the flat shape of the daily record form. Fields that do
// not apply (details when not carried out, reason when not interrupted) are
// dropped on save.
type RecordInput struct {
	CarriedOut         bool
	StartedTime        store.TimeOfDay
	DurationMinutes    int
	Interrupted        bool
	InterruptionReason string
	Concentration      int
	Accomplishment     int
	Fatigue            int
	Memo               string
}

// NewRecordInput returns the form defaults for e.
func NewRecordInput(e *store.Experiment) RecordInput {
	in := RecordInput{
		StartedTime:     store.Night,
		DurationMinutes: 15,
		Concentration:   3,
		Accomplishment:  3,
		Fatigue:         3,
	}
	if e != nil {
		in.StartedTime = store.DefaultStartedTime(e.NotificationTime)
	}
	return in
}

// InputFromRecord fills the edit form from an existing record.
func InputFromRecord(r *store.DailyRecord) RecordInput {
	in := RecordInput{Memo: r.Memo}
	if e := r.Execution; e != nil {
		in.CarriedOut = true
		in.StartedTime = e.StartedTime
		in.DurationMinutes = e.DurationMinutes
		in.Concentration = e.Concentration
		in.Accomplishment = e.Accomplishment
		in.Fatigue = e.Fatigue
		if e.Interruption != nil {
			in.Interrupted = true
			in.InterruptionReason = e.Interruption.Reason
		}
	}
	return in
}

// Record converts the form into its canonical variant.
func (in RecordInput) Record() store.DailyRecord {
	r := store.DailyRecord{Memo: strings.TrimSpace(in.Memo)}
	if !in.CarriedOut {
		return r
	}
	r.Execution = &store.Execution{
		StartedTime:     in.StartedTime,
		DurationMinutes: in.DurationMinutes,
		Concentration:   in.Concentration,
		Accomplishment:  in.Accomplishment,
		Fatigue:         in.Fatigue,
	}
	if in.Interrupted {
		r.Execution.Interruption = &store.Interruption{Reason: strings.TrimSpace(in.InterruptionReason)}
	}
	return r
}

// RecordManager reads and writes today's record of an experiment.
type RecordManager struct {
	deps  Deps
	cache *RecordCache
}

func NewRecordManager(deps Deps, cache *RecordCache) *RecordManager {
	return &RecordManager{deps: deps, cache: cache}
}

// LoadToday returns today's record, or nil if none was saved yet.
func (m *RecordManager) LoadToday(ctx context.Context, userID, experimentID string) (*store.DailyRecord, error) {
	r, err := m.deps.Repo.FindRecord(ctx, userID, experimentID, m.deps.today())
	if err != nil {
		return nil, newStoreError("load today's record", err)
	}
	return r, nil
}

// SaveToday writes today's record. The day key is looked up again right
// before the write, so a second save on the same day updates the existing
// record whatever the caller saw before.
func (m *RecordManager) SaveToday(ctx context.Context, userID, experimentID string, in RecordInput, confirmed bool) (*store.DailyRecord, error) {
	rec := in.Record()
	if err := validateStruct(rec); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, newUnconfirmedError("saving the record")
	}

	e, err := m.deps.Repo.GetExperiment(ctx, experimentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("experiment not found")
	}
	if err != nil {
		return nil, newStoreError("load experiment", err)
	}
	now := m.deps.now()
	if e.UserID != userID {
		return nil, newNotFoundError("experiment not found")
	}
	if !e.Active(now) {
		return nil, newNotFoundError("experiment has ended")
	}

	today := m.deps.today()
	existing, err := m.deps.Repo.FindRecord(ctx, userID, experimentID, today)
	if err != nil {
		return nil, newStoreError("check today's record", err)
	}

	rec.UserID = userID
	rec.ExperimentID = experimentID
	rec.RecordedDate = today
	rec.CreatedAt = now
	outcome := "created"
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		outcome = "updated"
	}

	id, err := m.deps.Repo.UpsertRecord(ctx, &rec)
	if err != nil {
		m.deps.Metrics.RecordSaved("error")
		m.deps.logger().Error("save record", "user_id", userID, "experiment_id", experimentID, "error", err)
		return nil, newStoreError("save record", err)
	}
	rec.ID = id
	rec.UpdatedAt = now

	m.cache.Invalidate(experimentID)
	m.deps.Metrics.RecordSaved(outcome)
	m.deps.logger().Info("record saved", "experiment_id", experimentID, "record_id", id,
		"outcome", outcome, "carried_out", rec.CarriedOut())
	return &rec, nil
}
