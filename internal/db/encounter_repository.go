package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProgressRow represents a row from encounter_progress.
type ProgressRow struct {
	InstanceID int64
	Key        int32
	Value      int32
	UpdatedAt  time.Time
}

// RunRow represents a row from encounter_runs.
type RunRow struct {
	RunID      uuid.UUID
	Encounter  string
	Seed       int64
	Outcome    int32
	ElapsedMS  int64
	FinishedAt time.Time
}

// EncounterRepository provides CRUD for the encounter tables.
type EncounterRepository struct {
	pool *pgxpool.Pool
}

// NewEncounterRepository creates a new EncounterRepository.
func NewEncounterRepository(pool *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{pool: pool}
}

// --- encounter_progress ---

// LoadAllProgress loads every progress value.
func (r *EncounterRepository) LoadAllProgress(ctx context.Context) ([]ProgressRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT instance_id, key, value, updated_at FROM encounter_progress`)
	if err != nil {
		return nil, fmt.Errorf("query encounter_progress: %w", err)
	}
	defer rows.Close()

	var result []ProgressRow
	for rows.Next() {
		var row ProgressRow
		if err := rows.Scan(&row.InstanceID, &row.Key, &row.Value, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan encounter_progress: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SaveProgress inserts or updates a progress value.
func (r *EncounterRepository) SaveProgress(ctx context.Context, row ProgressRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO encounter_progress (instance_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (instance_id, key) DO UPDATE SET
		   value      = EXCLUDED.value,
		   updated_at = EXCLUDED.updated_at`,
		row.InstanceID, row.Key, row.Value, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert encounter_progress instance %d key %d: %w", row.InstanceID, row.Key, err)
	}
	return nil
}

// DeleteInstanceProgress removes every progress value of an instance.
func (r *EncounterRepository) DeleteInstanceProgress(ctx context.Context, instanceID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM encounter_progress WHERE instance_id = $1`, instanceID)
	if err != nil {
		return fmt.Errorf("delete encounter_progress instance %d: %w", instanceID, err)
	}
	return nil
}

// --- encounter_runs ---

// SaveRun records a finished simulation run.
func (r *EncounterRepository) SaveRun(ctx context.Context, row RunRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO encounter_runs (run_id, encounter, seed, outcome, elapsed_ms, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.RunID, row.Encounter, row.Seed, row.Outcome, row.ElapsedMS, row.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert encounter_runs %s: %w", row.RunID, err)
	}
	return nil
}

// RecentRuns returns the latest runs of an encounter, newest first.
func (r *EncounterRepository) RecentRuns(ctx context.Context, encounter string, limit int) ([]RunRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT run_id, encounter, seed, outcome, elapsed_ms, finished_at
		 FROM encounter_runs
		 WHERE encounter = $1
		 ORDER BY finished_at DESC
		 LIMIT $2`, encounter, limit)
	if err != nil {
		return nil, fmt.Errorf("query encounter_runs: %w", err)
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var row RunRow
		if err := rows.Scan(&row.RunID, &row.Encounter, &row.Seed, &row.Outcome, &row.ElapsedMS, &row.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan encounter_runs: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
