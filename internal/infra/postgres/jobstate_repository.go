package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagevault/pipeline/internal/domain/jobstate"
)

// JobStateRepository persists the JobState aggregate across job_states and
// job_stages. error_counts lives as a single JSONB column on job_states
// (spec §4 mapping) rather than a side table. Counter increments are
// unconditional UPDATE ... SET x = x + $n statements (spec §4.1's atomic
// $inc); IncrementStageProgress issues two of them (the stage row, then
// job_states.last_progress_at) and TrackError uses jsonb_set. Grounded on
// importjob_repository.go's hand-written pgx style.
type JobStateRepository struct {
	pool *pgxpool.Pool
}

// NewJobStateRepository constructs a JobStateRepository over pool.
func NewJobStateRepository(pool *pgxpool.Pool) *JobStateRepository {
	return &JobStateRepository{pool: pool}
}

func (r *JobStateRepository) Save(ctx context.Context, job *jobstate.JobState) error {
	errorCountsJSON, err := json.Marshal(job.ErrorCounts())
	if err != nil {
		return fmt.Errorf("failed to marshal error counts: %w", err)
	}

	db := GetDBTX(ctx, r.pool)
	_, err = db.Exec(ctx, `
		INSERT INTO job_states (
			id, job_type, status, collection_id,
			total_items, completed_items, failed_items, skipped_items,
			error_counts, last_progress_at, stalled_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_items = EXCLUDED.total_items,
			completed_items = EXCLUDED.completed_items,
			failed_items = EXCLUDED.failed_items,
			skipped_items = EXCLUDED.skipped_items,
			error_counts = EXCLUDED.error_counts,
			last_progress_at = EXCLUDED.last_progress_at,
			stalled_at = EXCLUDED.stalled_at,
			updated_at = EXCLUDED.updated_at
	`,
		job.ID(), job.JobType(), job.Status(), job.CollectionID(),
		job.TotalItems(), job.CompletedItems(), job.FailedItems(), job.SkippedItems(),
		errorCountsJSON, job.LastProgressAt(), job.StalledAt(), job.CreatedAt(), job.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	for name, stage := range job.Stages() {
		if _, err := db.Exec(ctx, `
			INSERT INTO job_stages (job_id, stage_name, total_items, completed_items, failed_items, status)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (job_id, stage_name) DO UPDATE SET
				total_items = EXCLUDED.total_items,
				completed_items = EXCLUDED.completed_items,
				failed_items = EXCLUDED.failed_items,
				status = EXCLUDED.status
		`, job.ID(), name, stage.TotalItems, stage.CompletedItems, stage.FailedItems, stage.Status); err != nil {
			return err
		}
	}

	return nil
}

func (r *JobStateRepository) FindByID(ctx context.Context, id uuid.UUID) (*jobstate.JobState, error) {
	db := GetDBTX(ctx, r.pool)
	var (
		jobID                uuid.UUID
		jobType              jobstate.Type
		status               jobstate.Status
		collectionID         *uuid.UUID
		totalItems           int
		completedItems       int
		failedItems          int
		skippedItems         int
		errorCountsJSON      []byte
		lastProgressAt       time.Time
		stalledAt            *time.Time
		createdAt, updatedAt time.Time
	)
	err := db.QueryRow(ctx, `
		SELECT id, job_type, status, collection_id,
			total_items, completed_items, failed_items, skipped_items,
			error_counts, last_progress_at, stalled_at, created_at, updated_at
		FROM job_states WHERE id = $1
	`, id).Scan(
		&jobID, &jobType, &status, &collectionID,
		&totalItems, &completedItems, &failedItems, &skippedItems,
		&errorCountsJSON, &lastProgressAt, &stalledAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobstate.ErrNotFound
		}
		return nil, err
	}

	errorCounts := make(map[string]int)
	if len(errorCountsJSON) > 0 {
		if err := json.Unmarshal(errorCountsJSON, &errorCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error counts: %w", err)
		}
	}

	stages, err := r.loadStages(ctx, id)
	if err != nil {
		return nil, err
	}

	return jobstate.ReconstructJobState(
		jobID, jobType, status, collectionID,
		totalItems, completedItems, failedItems, skippedItems,
		errorCounts, stages, lastProgressAt, stalledAt, createdAt, updatedAt,
	), nil
}

func (r *JobStateRepository) loadStages(ctx context.Context, jobID uuid.UUID) (map[string]*jobstate.Stage, error) {
	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx, `
		SELECT stage_name, total_items, completed_items, failed_items, status
		FROM job_stages WHERE job_id = $1
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*jobstate.Stage)
	for rows.Next() {
		var s jobstate.Stage
		if err := rows.Scan(&s.Name, &s.TotalItems, &s.CompletedItems, &s.FailedItems, &s.Status); err != nil {
			return nil, err
		}
		out[s.Name] = &s
	}
	return out, rows.Err()
}

func (r *JobStateRepository) FindByStatus(ctx context.Context, status jobstate.Status, types []jobstate.Type, limit int) ([]*jobstate.JobState, error) {
	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx, `
		SELECT id FROM job_states
		WHERE status = $1 AND ($2::text[] IS NULL OR job_type = ANY($2))
		ORDER BY created_at ASC
		LIMIT $3
	`, status, typesToText(types), limit)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jobs := make([]*jobstate.JobState, 0, len(ids))
	for _, id := range ids {
		job, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func typesToText(types []jobstate.Type) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func (r *JobStateRepository) InitStage(ctx context.Context, jobID uuid.UUID, stageName string, totalItems int) error {
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, `
		INSERT INTO job_stages (job_id, stage_name, total_items, completed_items, failed_items, status)
		VALUES ($1,$2,$3,0,0,'pending')
		ON CONFLICT (job_id, stage_name) DO UPDATE SET total_items = EXCLUDED.total_items
	`, jobID, stageName, totalItems)
	return err
}

func (r *JobStateRepository) IncrementStageProgress(ctx context.Context, jobID uuid.UUID, stageName string, completedDelta, failedDelta int) error {
	db := GetDBTX(ctx, r.pool)
	tag, err := db.Exec(ctx, `
		UPDATE job_stages SET
			completed_items = completed_items + $3,
			failed_items = failed_items + $4,
			status = CASE WHEN status = 'pending' THEN 'running' ELSE status END
		WHERE job_id = $1 AND stage_name = $2
	`, jobID, stageName, completedDelta, failedDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("jobstate: stage not initialized")
	}
	_, err = db.Exec(ctx, `UPDATE job_states SET last_progress_at = now(), updated_at = now() WHERE id = $1`, jobID)
	return err
}

func (r *JobStateRepository) IncrementCompleted(ctx context.Context, jobID uuid.UUID, n int) error {
	return r.incrementCounter(ctx, jobID, "completed_items", n)
}

func (r *JobStateRepository) IncrementFailed(ctx context.Context, jobID uuid.UUID, n int) error {
	return r.incrementCounter(ctx, jobID, "failed_items", n)
}

func (r *JobStateRepository) IncrementSkipped(ctx context.Context, jobID uuid.UUID, n int) error {
	return r.incrementCounter(ctx, jobID, "skipped_items", n)
}

func (r *JobStateRepository) incrementCounter(ctx context.Context, jobID uuid.UUID, column string, n int) error {
	db := GetDBTX(ctx, r.pool)
	// column is one of a fixed internal set, never caller-controlled.
	query := `UPDATE job_states SET ` + column + ` = ` + column + ` + $2, last_progress_at = now(), updated_at = now() WHERE id = $1`
	_, err := db.Exec(ctx, query, jobID, n)
	return err
}

// TrackError atomically increments error_counts[errorKind] using a single
// jsonb_set expression so concurrent callers never clobber each other's
// increments, and returns the new total for that kind.
func (r *JobStateRepository) TrackError(ctx context.Context, jobID uuid.UUID, errorKind string) (int, error) {
	db := GetDBTX(ctx, r.pool)
	var total int
	err := db.QueryRow(ctx, `
		UPDATE job_states SET
			error_counts = jsonb_set(
				COALESCE(error_counts, '{}'::jsonb),
				ARRAY[$2::text],
				to_jsonb(COALESCE((error_counts->>$2)::int, 0) + 1)
			),
			updated_at = now()
		WHERE id = $1
		RETURNING (error_counts->>$2)::int
	`, jobID, errorKind).Scan(&total)
	return total, err
}

func (r *JobStateRepository) SetStatus(ctx context.Context, jobID uuid.UUID, status jobstate.Status) error {
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, `
		UPDATE job_states SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
	`, jobID, status)
	return err
}

func (r *JobStateRepository) SetStageStatus(ctx context.Context, jobID uuid.UUID, stageName string, status jobstate.StageStatus) error {
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, `
		UPDATE job_stages SET status = $3 WHERE job_id = $1 AND stage_name = $2
	`, jobID, stageName, status)
	return err
}
