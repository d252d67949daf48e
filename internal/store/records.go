package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const recordColumns = `id, experiment_id, user_id, recorded_date, carried_out, started_time,
	duration_minutes, interrupted, interruption_reason, concentration, accomplishment,
	fatigue, memo, created_at, updated_at`

// FindRecord returns the record for the given day, or nil if there is none.
func (s *Store) FindRecord(ctx context.Context, userID, experimentID string, day time.Time) (*DailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM daily_records
		 WHERE user_id = ? AND experiment_id = ? AND recorded_date = ?`,
		userID, experimentID, s.formatDate(day),
	)
	r, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return r, nil
}

// UpsertRecord writes r and returns its id. With an empty ID the record is
// created, or the existing record for the same day is overwritten. With an
// ID the matching row is updated. Conditional columns absent from r are set
// to NULL either way.
func (s *Store) UpsertRecord(ctx context.Context, r *DailyRecord) (string, error) {
	now := formatTime(time.Now())
	cols := recordValues(r)

	if r.ID == "" {
		var id string
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO daily_records (id, experiment_id, user_id, recorded_date, carried_out,
				started_time, duration_minutes, interrupted, interruption_reason,
				concentration, accomplishment, fatigue, memo, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, experiment_id, recorded_date) DO UPDATE SET
				carried_out = excluded.carried_out,
				started_time = excluded.started_time,
				duration_minutes = excluded.duration_minutes,
				interrupted = excluded.interrupted,
				interruption_reason = excluded.interruption_reason,
				concentration = excluded.concentration,
				accomplishment = excluded.accomplishment,
				fatigue = excluded.fatigue,
				memo = excluded.memo,
				updated_at = excluded.updated_at
			 RETURNING id`,
			append(append([]any{uuid.NewString(), r.ExperimentID, r.UserID, s.formatDate(r.RecordedDate)}, cols...), now, now)...,
		).Scan(&id)
		if err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_records SET carried_out = ?, started_time = ?, duration_minutes = ?,
			interrupted = ?, interruption_reason = ?, concentration = ?, accomplishment = ?,
			fatigue = ?, memo = ?, updated_at = ?
		 WHERE id = ?`,
		append(cols, now, r.ID)...,
	)
	if err != nil {
		return "", fmt.Errorf("update record %s: %w", r.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return "", fmt.Errorf("update record %s: %w", r.ID, ErrNotFound)
	}
	return r.ID, nil
}

// ListRecords returns the experiment's records ordered by day.
func (s *Store) ListRecords(ctx context.Context, userID, experimentID string) ([]DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM daily_records
		 WHERE user_id = ? AND experiment_id = ?
		 ORDER BY recorded_date, created_at`,
		userID, experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []DailyRecord
	for rows.Next() {
		r, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// recordValues returns carried_out through memo in column order.
func recordValues(r *DailyRecord) []any {
	var (
		startedTime, reason                    sql.NullString
		duration, interrupted                  sql.NullInt64
		concentration, accomplishment, fatigue sql.NullInt64
	)
	if e := r.Execution; e != nil {
		startedTime = sql.NullString{String: string(e.StartedTime), Valid: true}
		duration = sql.NullInt64{Int64: int64(e.DurationMinutes), Valid: true}
		interrupted = sql.NullInt64{Int64: int64(boolToInt(e.Interrupted())), Valid: true}
		if e.Interruption != nil {
			reason = sql.NullString{String: e.Interruption.Reason, Valid: true}
		}
		concentration = sql.NullInt64{Int64: int64(e.Concentration), Valid: true}
		accomplishment = sql.NullInt64{Int64: int64(e.Accomplishment), Valid: true}
		fatigue = sql.NullInt64{Int64: int64(e.Fatigue), Valid: true}
	}
	return []any{
		boolToInt(r.Execution != nil), startedTime, duration, interrupted, reason,
		concentration, accomplishment, fatigue, r.Memo,
	}
}

func (s *Store) scanRecord(row scanner) (*DailyRecord, error) {
	r := &DailyRecord{}
	var (
		recordedDate, createdAt, updatedAt     string
		carriedOut                             int
		startedTime, reason                    sql.NullString
		duration, interrupted                  sql.NullInt64
		concentration, accomplishment, fatigue sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.ExperimentID, &r.UserID, &recordedDate, &carriedOut,
		&startedTime, &duration, &interrupted, &reason,
		&concentration, &accomplishment, &fatigue, &r.Memo, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.RecordedDate = s.parseDate(recordedDate)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	if carriedOut == 1 {
		e := &Execution{
			StartedTime:     TimeOfDay(startedTime.String),
			DurationMinutes: int(duration.Int64),
			Concentration:   int(concentration.Int64),
			Accomplishment:  int(accomplishment.Int64),
			Fatigue:         int(fatigue.Int64),
		}
		if interrupted.Valid && interrupted.Int64 == 1 {
			e.Interruption = &Interruption{Reason: reason.String}
		}
		r.Execution = e
	}
	return r, nil
}
