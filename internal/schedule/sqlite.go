package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteBackend keeps the entry sequence in a single table, ordered by
// rowid so insertion order survives reloads. Saves replace the whole set
// inside one transaction.
type sqliteBackend struct {
	db *sql.DB
}

func newSQLiteBackend(path string, busyTimeout time.Duration) (*sqliteBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("schedule store path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schedules (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		device TEXT NOT NULL,
		action TEXT NOT NULL,
		at     TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Load() ([]Entry, error) {
	rows, err := b.db.Query(`SELECT device, action, at FROM schedules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.Device, &e.Action, &at); err != nil {
			return nil, err
		}
		tod, err := ParseTimeOfDay(at)
		if err != nil {
			return nil, fmt.Errorf("row for %s: %w", e.Device, err)
		}
		e.At = tod
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (b *sqliteBackend) Save(entries []Entry) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM schedules`); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, e := range entries {
		if _, err := tx.Exec(`INSERT INTO schedules(device, action, at) VALUES(?,?,?)`,
			e.Device, string(e.Action), e.At.String()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) Close() error { return b.db.Close() }
