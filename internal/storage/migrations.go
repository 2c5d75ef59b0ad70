package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_accounts",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE accounts (
				key TEXT PRIMARY KEY,
				profile_dir TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				last_used_at TIMESTAMP
			)`)
			return err
		},
	},
	{
		Version: 2,
		Name:    "create_runs",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE runs (
				run_id TEXT PRIMARY KEY,
				account_key TEXT NOT NULL,
				category TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				failed_step TEXT NOT NULL DEFAULT '',
				artifact TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				states_json TEXT NOT NULL DEFAULT '[]',
				started_at TIMESTAMP NOT NULL,
				finished_at TIMESTAMP
			)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_runs_account ON runs (account_key, started_at)`)
			return err
		},
	},
}

func (s *Storage) runMigrations() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range allMigrations {
		if applied[m.Version] {
			continue
		}
		slog.Debug(fmt.Sprintf("running migration %d: %s", m.Version, m.Name))
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *Storage) appliedMigrations() (map[int]bool, error) {
	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
