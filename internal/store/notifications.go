package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RegisterDeviceToken stores token for userID, refreshing updated_at when the
// pair already exists.
func (s *Store) RegisterDeviceToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens (user_id, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, token) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, token, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("register device token: %w", err)
	}
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, token, updated_at FROM device_tokens WHERE user_id = ? ORDER BY updated_at, token`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		var t DeviceToken
		var updatedAt string
		if err := rows.Scan(&t.UserID, &t.Token, &updatedAt); err != nil {
			return nil, err
		}
		t.UpdatedAt = parseTime(updatedAt)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RemoveDeviceTokens deletes the given tokens of userID and returns how many
// rows went away.
func (s *Store) RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin remove tokens: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, token := range tokens {
		res, err := tx.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token)
		if err != nil {
			return 0, fmt.Errorf("remove device token: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit remove tokens: %w", err)
	}
	return removed, nil
}

// NotificationLogID is the once-per-day key of a reminder.
func NotificationLogID(userID string, day time.Time) string {
	return userID + "_" + day.Format(dateLayout)
}

// GetNotificationLog returns the log entry with id, or nil if none exists.
func (s *Store) GetNotificationLog(ctx context.Context, id string) (*NotificationLog, error) {
	l := &NotificationLog{}
	var sentAt string
	var success int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, experiment_id, sent_at, success, device_count, success_count
		 FROM notification_logs WHERE id = ?`, id,
	).Scan(&l.ID, &l.UserID, &l.ExperimentID, &sentAt, &success, &l.DeviceCount, &l.SuccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification log: %w", err)
	}
	l.SentAt = parseTime(sentAt)
	l.Success = success == 1
	return l, nil
}

// PutNotificationLog writes l, replacing an earlier entry with the same id.
func (s *Store) PutNotificationLog(ctx context.Context, l *NotificationLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notification_logs
			(id, user_id, experiment_id, sent_at, success, device_count, success_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.ExperimentID, formatTime(l.SentAt), boolToInt(l.Success), l.DeviceCount, l.SuccessCount,
	)
	if err != nil {
		return fmt.Errorf("put notification log: %w", err)
	}
	return nil
}
