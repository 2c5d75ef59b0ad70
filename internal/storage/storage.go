// Package storage persists the account registry and the run history in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/theeshop/listingbot/internal/types"
)

var ErrNotFound = errors.New("not found")

type Storage struct {
	db *sql.DB
}

// NewStorage opens the database at dbPath and applies pending migrations.
// Use ":memory:" for a throwaway database.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	s := &Storage{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// TouchAccount registers a, or updates its profile directory and last use
// if it is already known. The creation time of a known account is kept.
func (s *Storage) TouchAccount(ctx context.Context, a types.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.LastUsedAt.IsZero() {
		a.LastUsedAt = a.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO accounts (key, profile_dir, created_at, last_used_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET profile_dir = excluded.profile_dir, last_used_at = excluded.last_used_at
	`, a.Key, a.ProfileDir, a.CreatedAt.UTC(), a.LastUsedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", a.Key, err)
	}
	return nil
}

func (s *Storage) Account(ctx context.Context, key string) (types.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, profile_dir, created_at, last_used_at FROM accounts WHERE key = ?`, key)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("account %s: %w", key, ErrNotFound)
	}
	return a, err
}

func (s *Storage) ListAccounts(ctx context.Context) ([]types.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, profile_dir, created_at, last_used_at FROM accounts ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []types.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc scanner) (types.Account, error) {
	var a types.Account
	var lastUsed sql.NullTime
	if err := sc.Scan(&a.Key, &a.ProfileDir, &a.CreatedAt, &lastUsed); err != nil {
		return a, err
	}
	if lastUsed.Valid {
		a.LastUsedAt = lastUsed.Time
	}
	return a, nil
}

// SaveRun inserts r or replaces the record with the same run id.
func (s *Storage) SaveRun(ctx context.Context, r types.RunRecord) error {
	states, err := json.Marshal(r.States)
	if err != nil {
		return err
	}
	var finished sql.NullTime
	if !r.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: r.FinishedAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO runs
	(run_id, account_key, category, title, status, failed_step, artifact, error, states_json, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.AccountKey, r.Category, r.Title, string(r.Status), r.FailedStep, r.Artifact, r.Error,
		string(states), r.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
	}
	return nil
}

const runColumns = `run_id, account_key, category, title, status, failed_step, artifact, error, states_json, started_at, finished_at`

func (s *Storage) Run(ctx context.Context, id string) (types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the latest runs first. An empty account lists runs of
// all accounts; limit <= 0 means no limit.
func (s *Storage) ListRuns(ctx context.Context, account string, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
	WHERE (? = '' OR account_key = ?) ORDER BY started_at DESC LIMIT ?`, account, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []types.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(sc scanner) (types.RunRecord, error) {
	var r types.RunRecord
	var status, states string
	var finished sql.NullTime
	err := sc.Scan(&r.RunID, &r.AccountKey, &r.Category, &r.Title, &status, &r.FailedStep,
		&r.Artifact, &r.Error, &states, &r.StartedAt, &finished)
	if err != nil {
		return r, err
	}
	r.Status = types.RunStatus(status)
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	if err := json.Unmarshal([]byte(states), &r.States); err != nil {
		return r, fmt.Errorf("invalid states of run %s: %w", r.RunID, err)
	}
	return r, nil
}
