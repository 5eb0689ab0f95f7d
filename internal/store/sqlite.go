// Package store keeps recorded run snapshots in a local sqlite file, for
// offline replay and fixtures. It serves the same fetch interface as the
// HTTP client, so the rest of the tool cannot tell a recording from a live
// backend.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/runwatch/runwatch/internal/models"
	"github.com/runwatch/runwatch/internal/poller"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		status TEXT NOT NULL,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_repository ON runs(repository);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a snapshot, replacing any earlier recording of the same
// run.
func (s *Store) SaveRun(run *models.AgentRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (id, repository, status, recorded_at, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   repository = excluded.repository,
		   status = excluded.status,
		   recorded_at = excluded.recorded_at,
		   payload = excluded.payload`,
		run.ID, run.Repository, string(run.Status), time.Now().UTC(), string(payload),
	)
	return err
}

// GetRun loads a recorded snapshot. Implements poller.Fetcher; a missing
// recording wraps poller.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*models.AgentRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recorded run %s: %w", id, poller.ErrNotFound)
		}
		return nil, err
	}

	var run models.AgentRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns recorded snapshots, newest recording first. An empty
// repository matches everything.
func (s *Store) ListRuns(ctx context.Context, repository string) ([]*models.AgentRun, error) {
	query := `SELECT payload FROM runs ORDER BY recorded_at DESC`
	args := []any{}
	if repository != "" {
		query = `SELECT payload FROM runs WHERE repository = ? ORDER BY recorded_at DESC`
		args = append(args, repository)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.AgentRun
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var run models.AgentRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			continue // skip snapshots recorded by a newer/older schema
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
