package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertExperiment is a test helper that creates an experiment starting at
// start and running for days.
func insertExperiment(t *testing.T, s *Store, userID string, start time.Time, days int) *Experiment {
	t.Helper()
	e := &Experiment{
		UserID:           userID,
		Strategy:         "environment",
		Action:           "Read ten pages",
		DurationDays:     days,
		StartAt:          start,
		EndAt:            start.Add(time.Duration(days) * 24 * time.Hour),
		NotificationTime: "07:30",
		CreatedAt:        start,
	}
	id, err := s.CreateExperiment(context.Background(), e)
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	e.ID = id
	return e
}

func carriedOutRecord(e *Experiment, day time.Time) *DailyRecord {
	return &DailyRecord{
		ExperimentID: e.ID,
		UserID:       e.UserID,
		RecordedDate: day,
		Memo:         "went well",
		Execution: &Execution{
			StartedTime:     Morning,
			DurationMinutes: 30,
			Interruption:    &Interruption{Reason: "phone"},
			Concentration:   4,
			Accomplishment:  3,
			Fatigue:         2,
		},
	}
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/habitlab.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen, should not re-migrate
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Experiments
// ============================================================

func TestCreateAndGetExperiment(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := insertExperiment(t, s, "u1", start, 14)

	got, err := s.GetExperiment(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u1" || got.Strategy != "environment" || got.DurationDays != 14 {
		t.Fatalf("unexpected experiment: %+v", got)
	}
	if !got.StartAt.Equal(start) {
		t.Fatalf("StartAt = %v, want %v", got.StartAt, start)
	}
	if !got.EndAt.Equal(start.Add(14 * 24 * time.Hour)) {
		t.Fatalf("EndAt = %v", got.EndAt)
	}
	if got.NotificationTime != "07:30" {
		t.Fatalf("NotificationTime = %q", got.NotificationTime)
	}
}

func TestGetExperimentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetExperiment(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateExperimentRejectsSecondActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)
	insertExperiment(t, s, "u1", start, 30)

	_, err := s.CreateExperiment(ctx, &Experiment{
		UserID: "u1", Strategy: "other", Action: "x", DurationDays: 5,
		StartAt: time.Now(), EndAt: time.Now().Add(5 * 24 * time.Hour), NotificationTime: "08:00",
	})
	if !errors.Is(err, ErrActiveExperimentExists) {
		t.Fatalf("expected ErrActiveExperimentExists, got %v", err)
	}

	active, err := s.FindActiveExperiments(ctx, "u1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active experiment, got %d", len(active))
	}
}

func TestCreateExperimentOtherUserUnaffected(t *testing.T) {
	s := newTestStore(t)
	start := time.Now().Add(-time.Hour)
	insertExperiment(t, s, "u1", start, 30)
	insertExperiment(t, s, "u2", start, 30)
}

func TestEndExperiment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-48*time.Hour), 30)

	now := time.Now()
	if err := s.EndExperiment(ctx, e.ID, now); err != nil {
		t.Fatal(err)
	}

	active, err := s.FindActiveExperiments(ctx, "u1", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active experiment after end, got %d", len(active))
	}

	got, _ := s.GetExperiment(ctx, e.ID)
	if got.EndAt.After(now) {
		t.Fatalf("EndAt %v should not be after %v", got.EndAt, now)
	}
}

func TestEndExperimentNeverRetroactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-10 * 24 * time.Hour)
	e := insertExperiment(t, s, "u1", start, 3) // already expired

	err := s.EndExperiment(ctx, e.ID, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired experiment, got %v", err)
	}
	got, _ := s.GetExperiment(ctx, e.ID)
	if !got.EndAt.Equal(e.EndAt.UTC().Truncate(time.Second)) {
		t.Fatalf("EndAt changed: %v -> %v", e.EndAt, got.EndAt)
	}
}

func TestEndExperimentAllowsNewOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 30)
	if err := s.EndExperiment(ctx, e.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	insertExperiment(t, s, "u1", time.Now(), 7)
}

func TestListExperimentsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := insertExperiment(t, s, "u1", base, 7)
	second := insertExperiment(t, s, "u1", base.Add(30*24*time.Hour), 7)
	insertExperiment(t, s, "u2", base, 7)

	list, err := s.ListExperiments(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("wrong order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestListExperimentsEmpty(t *testing.T) {
	s := newTestStore(t)
	list, err := s.ListExperiments(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func TestListActiveExperimentsAcrossUsers(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	insertExperiment(t, s, "u1", now.Add(-time.Hour), 10)
	insertExperiment(t, s, "u2", now.Add(-time.Hour), 10)
	insertExperiment(t, s, "u3", now.Add(-20*24*time.Hour), 10) // expired

	active, err := s.ListActiveExperiments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active experiments, got %d", len(active))
	}
}

// ============================================================
// Daily records
// ============================================================

func TestUpsertAndFindRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	day := DayKey(time.Now(), time.Local)

	id, err := s.UpsertRecord(ctx, carriedOutRecord(e, day))
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	r, err := s.FindRecord(ctx, "u1", e.ID, day)
	if err != nil {
		t.Fatal(err)
	}
	if r == nil {
		t.Fatal("expected a record")
	}
	if r.ID != id {
		t.Fatalf("ID = %s, want %s", r.ID, id)
	}
	if !r.RecordedDate.Equal(day) {
		t.Fatalf("RecordedDate = %v, want %v", r.RecordedDate, day)
	}
	if !r.CarriedOut() || r.Execution.StartedTime != Morning || r.Execution.DurationMinutes != 30 {
		t.Fatalf("unexpected execution: %+v", r.Execution)
	}
	if !r.Execution.Interrupted() || r.Execution.Interruption.Reason != "phone" {
		t.Fatalf("unexpected interruption: %+v", r.Execution.Interruption)
	}
	if r.Execution.Concentration != 4 || r.Execution.Accomplishment != 3 || r.Execution.Fatigue != 2 {
		t.Fatalf("unexpected metrics: %+v", r.Execution)
	}
}

func TestFindRecordNone(t *testing.T) {
	s := newTestStore(t)
	r, err := s.FindRecord(context.Background(), "u1", "e1", DayKey(time.Now(), time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("expected nil, got %+v", r)
	}
}

func TestUpsertRecordSameDayKeepsOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	day := DayKey(time.Now(), time.Local)

	id1, err := s.UpsertRecord(ctx, carriedOutRecord(e, day))
	if err != nil {
		t.Fatal(err)
	}
	// A second create for the same day, as from stale state, must not duplicate.
	id2, err := s.UpsertRecord(ctx, &DailyRecord{ExperimentID: e.ID, UserID: "u1", RecordedDate: day, Memo: "again"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %s and %s", id1, id2)
	}

	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM daily_records`).Scan(&count)
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestUpsertRecordClearsConditionalColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	day := DayKey(time.Now(), time.Local)

	id, _ := s.UpsertRecord(ctx, carriedOutRecord(e, day))
	_, err := s.UpsertRecord(ctx, &DailyRecord{ID: id, ExperimentID: e.ID, UserID: "u1", RecordedDate: day})
	if err != nil {
		t.Fatal(err)
	}

	var nonNull int
	s.db.QueryRow(`SELECT COUNT(*) FROM daily_records WHERE id = ? AND (
		started_time IS NOT NULL OR duration_minutes IS NOT NULL OR interrupted IS NOT NULL OR
		interruption_reason IS NOT NULL OR concentration IS NOT NULL OR
		accomplishment IS NOT NULL OR fatigue IS NOT NULL)`, id).Scan(&nonNull)
	if nonNull != 0 {
		t.Fatal("conditional columns should be NULL after carried_out=false")
	}

	r, _ := s.FindRecord(ctx, "u1", e.ID, day)
	if r.CarriedOut() {
		t.Fatal("record should not be carried out")
	}
}

func TestUpsertRecordClearsReasonWhenNotInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	day := DayKey(time.Now(), time.Local)

	rec := carriedOutRecord(e, day)
	id, _ := s.UpsertRecord(ctx, rec)
	rec.ID = id
	rec.Execution.Interruption = nil
	if _, err := s.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	var reason *string
	var interrupted int
	s.db.QueryRow(`SELECT interruption_reason, interrupted FROM daily_records WHERE id = ?`, id).Scan(&reason, &interrupted)
	if reason != nil {
		t.Fatalf("expected NULL reason, got %q", *reason)
	}
	if interrupted != 0 {
		t.Fatalf("expected interrupted=0, got %d", interrupted)
	}
}

func TestUpsertRecordNextDayCreatesNewRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-48*time.Hour), 10)
	today := DayKey(time.Now(), time.Local)
	yesterday := today.AddDate(0, 0, -1)

	id1, _ := s.UpsertRecord(ctx, carriedOutRecord(e, yesterday))
	id2, _ := s.UpsertRecord(ctx, carriedOutRecord(e, today))
	if id1 == id2 {
		t.Fatal("expected a new record id after day rollover")
	}
}

func TestUpsertRecordUnknownID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	rec := carriedOutRecord(e, DayKey(time.Now(), time.Local))
	rec.ID = "missing"
	_, err := s.UpsertRecord(ctx, rec)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecordsAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-5*24*time.Hour), 10)
	today := DayKey(time.Now(), time.Local)

	for _, offset := range []int{0, -3, -1} {
		if _, err := s.UpsertRecord(ctx, carriedOutRecord(e, today.AddDate(0, 0, offset))); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.ListRecords(ctx, "u1", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if !records[i-1].RecordedDate.Before(records[i].RecordedDate) {
			t.Fatalf("records not ascending at %d", i)
		}
	}
}

func TestListRecordsIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e1 := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)
	e2 := insertExperiment(t, s, "u2", time.Now().Add(-time.Hour), 10)
	day := DayKey(time.Now(), time.Local)
	s.UpsertRecord(ctx, carriedOutRecord(e1, day))
	s.UpsertRecord(ctx, carriedOutRecord(e2, day))

	records, _ := s.ListRecords(ctx, "u1", e1.ID)
	if len(records) != 1 {
		t.Fatalf("expected 1 record for u1, got %d", len(records))
	}
	records, _ = s.ListRecords(ctx, "u1", e2.ID)
	if len(records) != 0 {
		t.Fatalf("expected 0 records for mismatched user, got %d", len(records))
	}
}

func TestRecordDateUsesStoreLocation(t *testing.T) {
	s := newTestStore(t)
	tokyo := time.FixedZone("JST", 9*3600)
	s.SetLocation(tokyo)
	ctx := context.Background()
	e := insertExperiment(t, s, "u1", time.Now().Add(-time.Hour), 10)

	// 20:00 UTC is already the next calendar day in JST.
	instant := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	day := DayKey(instant, tokyo)
	s.UpsertRecord(ctx, carriedOutRecord(e, day))

	var stored string
	s.db.QueryRow(`SELECT recorded_date FROM daily_records`).Scan(&stored)
	if stored != "2026-05-02" {
		t.Fatalf("recorded_date = %q, want 2026-05-02", stored)
	}
	r, _ := s.FindRecord(ctx, "u1", e.ID, day)
	if r == nil || !r.RecordedDate.Equal(day) {
		t.Fatalf("reloaded date mismatch: %+v", r)
	}
}

// ============================================================
// Device tokens and notification logs
// ============================================================

func TestDeviceTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RegisterDeviceToken(ctx, "u1", "tok-a")
	s.RegisterDeviceToken(ctx, "u1", "tok-b")
	s.RegisterDeviceToken(ctx, "u1", "tok-a") // refresh, no duplicate
	s.RegisterDeviceToken(ctx, "u2", "tok-c")

	tokens, err := s.ListDeviceTokens(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}

	removed, err := s.RemoveDeviceTokens(ctx, "u1", []string{"tok-a", "tok-zzz"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	tokens, _ = s.ListDeviceTokens(ctx, "u1")
	if len(tokens) != 1 || tokens[0].Token != "tok-b" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestNotificationLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.Local)
	id := NotificationLogID("u1", day)
	if id != "u1_2026-04-02" {
		t.Fatalf("log id = %q", id)
	}

	got, err := s.GetNotificationLog(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected no log yet")
	}

	err = s.PutNotificationLog(ctx, &NotificationLog{
		ID: id, UserID: "u1", ExperimentID: "e1", SentAt: time.Now(),
		Success: true, DeviceCount: 2, SuccessCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetNotificationLog(ctx, id)
	if got == nil || !got.Success || got.DeviceCount != 2 || got.SuccessCount != 1 {
		t.Fatalf("unexpected log: %+v", got)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	val, err := s.GetSetting(context.Background(), SettingNotificationPermission)
	if err != nil {
		t.Fatal(err)
	}
	if val != PermissionDefault {
		t.Fatalf("GetSetting = %q, want %q", val, PermissionDefault)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetSetting(ctx, "key", "v1")
	s.SetSetting(ctx, "key", "v2")
	val, _ := s.GetSetting(ctx, "key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSetting(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing setting, got %v", err)
	}
}

func TestGetAllSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SetSetting(ctx, "a_key", "x")
	all, err := s.GetAllSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 2 {
		t.Fatalf("expected at least 2 settings, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %s >= %s", all[i-1].Key, all[i].Key)
		}
	}
}

// ============================================================
// Foreign key constraints
// ============================================================

func TestForeignKeyRecordExperiment(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertRecord(context.Background(), &DailyRecord{
		ExperimentID: "missing", UserID: "u1", RecordedDate: DayKey(time.Now(), time.Local),
	})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

// ============================================================
// Model helpers
// ============================================================

func TestTimeOfDayForHour(t *testing.T) {
	cases := map[int]TimeOfDay{
		0: LateNight, 2: LateNight, 3: EarlyMorning, 5: EarlyMorning,
		6: Morning, 8: Morning, 9: Daytime, 14: Daytime,
		15: Evening, 17: Evening, 18: Night, 23: Night, 24: Night, -1: Night,
	}
	for h, want := range cases {
		if got := TimeOfDayForHour(h); got != want {
			t.Errorf("TimeOfDayForHour(%d) = %s, want %s", h, got, want)
		}
	}
}

func TestDefaultStartedTime(t *testing.T) {
	if got := DefaultStartedTime("07:30"); got != Morning {
		t.Fatalf("got %s, want morning", got)
	}
	if got := DefaultStartedTime("bogus"); got != Night {
		t.Fatalf("got %s, want night", got)
	}
}

func TestDayKey(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	got := DayKey(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), loc)
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("DayKey = %v, want %v", got, want)
	}
}

func TestExperimentActive(t *testing.T) {
	now := time.Now()
	e := Experiment{EndAt: now.Add(time.Minute)}
	if !e.Active(now) {
		t.Fatal("expected active")
	}
	e.EndAt = now
	if e.Active(now) {
		t.Fatal("endAt == now should be inactive")
	}
}
