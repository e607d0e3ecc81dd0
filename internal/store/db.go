package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Common errors surfaced by store operations.
var (
	ErrNotFound     = errors.New("not found")
	ErrLockConflict = errors.New("lock conflict")
	ErrQueueBusy    = errors.New("queue at max running capacity")
)

// Store is the single shared relational state: jobs, resumes, matches, the
// durable run queue, run logs, tags and writer-lock bookkeeping. One file,
// ACID transactions, WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; a small pool keeps readers concurrent
	// while busy_timeout serializes write transactions.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL DEFAULT '',
		criteria TEXT,
		tags TEXT NOT NULL DEFAULT '',
		upload_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resumes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL DEFAULT '',
		profile TEXT,
		tags TEXT NOT NULL DEFAULT '',
		upload_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL,
		resume_id INTEGER NOT NULL,
		candidate_name TEXT NOT NULL DEFAULT '',
		match_score INTEGER NOT NULL DEFAULT 0,
		standard_score INTEGER,
		decision TEXT NOT NULL DEFAULT 'Review',
		strategy TEXT NOT NULL DEFAULT 'Standard',
		reasoning TEXT NOT NULL DEFAULT '',
		standard_reasoning TEXT NOT NULL DEFAULT '',
		missing_skills TEXT NOT NULL DEFAULT '[]',
		match_details TEXT NOT NULL DEFAULT '[]',
		UNIQUE(job_id, resume_id)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		threshold INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_matches (
		run_id INTEGER NOT NULL,
		match_id INTEGER NOT NULL,
		UNIQUE(run_id, match_id)
	)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		progress INTEGER NOT NULL DEFAULT 0,
		current_step TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '{}',
		result TEXT,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		last_log_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS job_run_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		level TEXT NOT NULL DEFAULT 'info',
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_nocase ON tags(name COLLATE NOCASE)`,
	`CREATE TABLE IF NOT EXISTS group_flags (
		key TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_job_run_logs_run ON job_run_logs(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_job ON matches(job_id)`,
}

// additiveColumns lists columns added after the initial schema. Opening an
// older database must not fail; missing columns are added with defaults.
var additiveColumns = []struct {
	table  string
	column string
	ddl    string
}{
	{"job_runs", "current_step", "ALTER TABLE job_runs ADD COLUMN current_step TEXT NOT NULL DEFAULT ''"},
	{"job_runs", "last_log_at", "ALTER TABLE job_runs ADD COLUMN last_log_at TIMESTAMP"},
	{"matches", "standard_score", "ALTER TABLE matches ADD COLUMN standard_score INTEGER"},
	{"matches", "standard_reasoning", "ALTER TABLE matches ADD COLUMN standard_reasoning TEXT NOT NULL DEFAULT ''"},
	{"jobs", "tags", "ALTER TABLE jobs ADD COLUMN tags TEXT NOT NULL DEFAULT ''"},
	{"resumes", "tags", "ALTER TABLE resumes ADD COLUMN tags TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	for _, col := range additiveColumns {
		exists, err := s.columnExists(col.table, col.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := s.db.Exec(col.ddl); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.column, err)
			}
		}
	}

	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetSetting reads a settings value; ok is false when the key is absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting writes a settings value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// DeleteSetting removes a settings value.
func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// SetGroupFlag atomically sets a one-shot flag. It returns true only for the
// caller that actually inserted the row; everyone else sees false.
func (s *Store) SetGroupFlag(key string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO group_flags (key, created_at) VALUES (?, ?)`, key, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(tags string) []string {
	if tags == "" {
		return []string{}
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
