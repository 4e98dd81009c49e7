package jobstate

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists job state. Every increment method is a single
// unconditional atomic update (spec §4.1) — idempotent under at-least-once
// redelivery because duplication is tolerated, not prevented, by design
// (spec §8 scenario S6).
type Repository interface {
	Save(ctx context.Context, job *JobState) error
	FindByID(ctx context.Context, id uuid.UUID) (*JobState, error)
	FindByStatus(ctx context.Context, status Status, types []Type, limit int) ([]*JobState, error)

	InitStage(ctx context.Context, jobID uuid.UUID, stageName string, totalItems int) error
	IncrementStageProgress(ctx context.Context, jobID uuid.UUID, stageName string, completedDelta, failedDelta int) error
	IncrementCompleted(ctx context.Context, jobID uuid.UUID, n int) error
	IncrementFailed(ctx context.Context, jobID uuid.UUID, n int) error
	IncrementSkipped(ctx context.Context, jobID uuid.UUID, n int) error
	TrackError(ctx context.Context, jobID uuid.UUID, errorKind string) (total int, err error)
	SetStatus(ctx context.Context, jobID uuid.UUID, status Status) error
	SetStageStatus(ctx context.Context, jobID uuid.UUID, stageName string, status StageStatus) error
}
