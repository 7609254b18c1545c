// Package history keeps a rolling SQLite log of battery and motor readings
// so the status page can show discharge over time.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, registers "sqlite"

	"github.com/sweeney/vacuum-controller/internal/motor"
)

// Reading is one logged sample.
type Reading struct {
	Time    time.Time
	Voltage float64
	Percent int
	Level   motor.PowerLevel
	Enabled bool
	Duty    int
}

// Store wraps the readings database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			voltage REAL NOT NULL,
			percent INTEGER NOT NULL,
			level   TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			duty    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec %q: %w", m, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a reading.
func (s *Store) Record(r Reading) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (ts, voltage, percent, level, enabled, duty) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Time.UnixMilli(), r.Voltage, r.Percent, r.Level.Label(), r.Enabled, r.Duty,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Recent returns up to n readings, oldest first.
func (s *Store) Recent(n int) ([]Reading, error) {
	rows, err := s.db.Query(
		`SELECT ts, voltage, percent, level, enabled, duty FROM (
			SELECT id, ts, voltage, percent, level, enabled, duty FROM readings ORDER BY ts DESC, id DESC LIMIT ?
		) ORDER BY ts ASC, id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var (
			r     Reading
			ts    int64
			label string
		)
		if err := rows.Scan(&ts, &r.Voltage, &r.Percent, &label, &r.Enabled, &r.Duty); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Time = time.UnixMilli(ts).UTC()
		if r.Level, err = motor.ParseLevel(label); err != nil {
			return nil, fmt.Errorf("reading at %d: %w", ts, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes readings older than before and returns how many were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM readings WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	return res.RowsAffected()
}
