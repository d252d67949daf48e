package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const experimentColumns = `id, user_id, strategy, action, duration_days, start_at, end_at, notification_time, created_at`

// CreateExperiment inserts e and returns its id. It fails with
// ErrActiveExperimentExists when the owner already has an experiment that
// ends after e.StartAt.
func (s *Store) CreateExperiment(ctx context.Context, e *Experiment) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin create experiment: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM experiments WHERE user_id = ? AND end_at > ?`,
		e.UserID, formatTime(e.StartAt),
	).Scan(&active)
	if err != nil {
		return "", fmt.Errorf("count active experiments: %w", err)
	}
	if active > 0 {
		return "", ErrActiveExperimentExists
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO experiments (`+experimentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.Strategy, e.Action, e.DurationDays,
		formatTime(e.StartAt), formatTime(e.EndAt), e.NotificationTime, formatTime(createdAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert experiment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit experiment: %w", err)
	}
	return id, nil
}

func (s *Store) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id)
	e, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get experiment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", id, err)
	}
	return e, nil
}

// FindActiveExperiments returns the user's experiments with end_at > now,
// oldest first. More than one result means the store invariant was broken.
func (s *Store) FindActiveExperiments(ctx context.Context, userID string, now time.Time) ([]Experiment, error) {
	return s.queryExperiments(ctx, "find active experiments",
		`SELECT `+experimentColumns+` FROM experiments WHERE user_id = ? AND end_at > ? ORDER BY created_at, id`,
		userID, formatTime(now),
	)
}

// ListActiveExperiments returns every running experiment across all users.
func (s *Store) ListActiveExperiments(ctx context.Context, now time.Time) ([]Experiment, error) {
	return s.queryExperiments(ctx, "list active experiments",
		`SELECT `+experimentColumns+` FROM experiments WHERE end_at > ? ORDER BY user_id, created_at`,
		formatTime(now),
	)
}

// ListExperiments returns all of the user's experiments, newest first.
func (s *Store) ListExperiments(ctx context.Context, userID string) ([]Experiment, error) {
	return s.queryExperiments(ctx, "list experiments",
		`SELECT `+experimentColumns+` FROM experiments WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// EndExperiment sets end_at to now. It only ever moves the end earlier: an
// experiment that already ended keeps its original end.
func (s *Store) EndExperiment(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET end_at = ? WHERE id = ? AND end_at > ?`,
		formatTime(now), id, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("end experiment %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("end experiment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) queryExperiments(ctx context.Context, op, query string, args ...any) ([]Experiment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var experiments []Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, *e)
	}
	return experiments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (*Experiment, error) {
	e := &Experiment{}
	var startAt, endAt, createdAt string
	err := row.Scan(&e.ID, &e.UserID, &e.Strategy, &e.Action, &e.DurationDays,
		&startAt, &endAt, &e.NotificationTime, &createdAt)
	if err != nil {
		return nil, err
	}
	e.StartAt = parseTime(startAt)
	e.EndAt = parseTime(endAt)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}
