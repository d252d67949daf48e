package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

var (
	// ErrNotFound is returned by Get operations when the row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrActiveExperimentExists is returned when a user already has an
	// experiment whose end is in the future.
	ErrActiveExperimentExists = errors.New("an active experiment already exists")
)

type Store struct {
	db  *sql.DB
	loc *time.Location // calendar of recorded_date
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, loc: time.Local}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

// SetLocation sets the time zone record dates are interpreted in.
func (s *Store) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS experiments (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		strategy          TEXT NOT NULL,
		action            TEXT NOT NULL,
		duration_days     INTEGER NOT NULL,
		start_at          TEXT NOT NULL,
		end_at            TEXT NOT NULL,
		notification_time TEXT NOT NULL,
		created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_experiments_user_end ON experiments(user_id, end_at);

	CREATE TABLE IF NOT EXISTS daily_records (
		id                  TEXT PRIMARY KEY,
		experiment_id       TEXT NOT NULL REFERENCES experiments(id),
		user_id             TEXT NOT NULL,
		recorded_date       TEXT NOT NULL,
		carried_out         INTEGER NOT NULL DEFAULT 0,
		started_time        TEXT,
		duration_minutes    INTEGER,
		interrupted         INTEGER,
		interruption_reason TEXT,
		concentration       INTEGER,
		accomplishment      INTEGER,
		fatigue             INTEGER,
		memo                TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		updated_at          TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		UNIQUE(user_id, experiment_id, recorded_date)
	);

	CREATE INDEX IF NOT EXISTS idx_records_experiment ON daily_records(experiment_id, recorded_date);

	CREATE TABLE IF NOT EXISTS device_tokens (
		user_id    TEXT NOT NULL,
		token      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, token)
	);

	CREATE TABLE IF NOT EXISTS notification_logs (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		experiment_id TEXT NOT NULL,
		sent_at       TEXT NOT NULL,
		success       INTEGER NOT NULL DEFAULT 0,
		device_count  INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('notification_permission', 'default');
	`
	_, err := s.db.Exec(ddl)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

const dateLayout = "2006-01-02"

func (s *Store) formatDate(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}

func (s *Store) parseDate(v string) time.Time {
	t, _ := time.ParseInLocation(dateLayout, v, s.loc)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
