package jobstate

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Service implements the C4 contract from spec §4.1: the narrow surface
// every pipeline consumer calls to move job progress forward. It adds the
// warning-observation behavior on top of the repository's raw atomic ops.
type Service struct {
	repo Repository
}

// NewService constructs a jobstate Service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateJob persists a new Pending job, used by coordinators that kick off
// a new unit of work (resume, bulk operation) rather than react to one.
func (s *Service) CreateJob(ctx context.Context, jobType Type, collectionID *uuid.UUID) (*JobState, error) {
	job, err := NewJobState(jobType, collectionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// InitStage must be called before any message referencing that stage is
// published (spec §4.1, §4.5 step 3).
func (s *Service) InitStage(ctx context.Context, jobID uuid.UUID, stageName string, totalItems int) error {
	return s.repo.InitStage(ctx, jobID, stageName, totalItems)
}

// IncrementStageProgress bumps a stage's counters. A missing stage is
// logged loudly and otherwise ignored — it is always a bug upstream
// (stage not initialized before publish), never a reason to fail the
// message (spec §7 SchemaAbsent).
func (s *Service) IncrementStageProgress(ctx context.Context, jobID uuid.UUID, stageName string, completedDelta, failedDelta int) {
	if err := s.repo.IncrementStageProgress(ctx, jobID, stageName, completedDelta, failedDelta); err != nil {
		log.Printf("jobstate: IncrementStageProgress(job=%s, stage=%s) failed: %v", jobID, stageName, err)
	}
}

// IncrementCompleted bumps the job-wide completed counter.
func (s *Service) IncrementCompleted(ctx context.Context, jobID uuid.UUID) {
	if err := s.repo.IncrementCompleted(ctx, jobID, 1); err != nil {
		log.Printf("jobstate: IncrementCompleted(job=%s) failed: %v", jobID, err)
	}
}

// IncrementFailed bumps the job-wide failed counter.
func (s *Service) IncrementFailed(ctx context.Context, jobID uuid.UUID) {
	if err := s.repo.IncrementFailed(ctx, jobID, 1); err != nil {
		log.Printf("jobstate: IncrementFailed(job=%s) failed: %v", jobID, err)
	}
}

// IncrementSkipped bumps the job-wide skipped counter.
func (s *Service) IncrementSkipped(ctx context.Context, jobID uuid.UUID) {
	if err := s.repo.IncrementSkipped(ctx, jobID, 1); err != nil {
		log.Printf("jobstate: IncrementSkipped(job=%s) failed: %v", jobID, err)
	}
}

// TrackError bumps an error-kind bucket and emits a warning observation
// whenever the bucket crosses a multiple of 10 (spec §4.1).
func (s *Service) TrackError(ctx context.Context, jobID uuid.UUID, errorKind string) {
	total, err := s.repo.TrackError(ctx, jobID, errorKind)
	if err != nil {
		log.Printf("jobstate: TrackError(job=%s, kind=%s) failed: %v", jobID, errorKind, err)
		return
	}
	if total > 0 && total%10 == 0 {
		log.Printf("jobstate: WARNING job=%s error kind=%s has reached %d occurrences", jobID, errorKind, total)
	}
}

// SetStatus performs a guarded status transition.
func (s *Service) SetStatus(ctx context.Context, jobID uuid.UUID, status Status) error {
	return s.repo.SetStatus(ctx, jobID, status)
}

// EnsureRunning sets the job to Running on first activity if it is still
// Pending (spec §4.4's status heartbeat). Long-running jobs would
// otherwise stay visibly Pending despite real progress.
func (s *Service) EnsureRunning(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status() != StatusPending {
		return nil
	}
	return s.repo.SetStatus(ctx, jobID, StatusRunning)
}

// SetStageStatus performs a guarded stage status transition.
func (s *Service) SetStageStatus(ctx context.Context, jobID uuid.UUID, stageName string, status StageStatus) error {
	return s.repo.SetStageStatus(ctx, jobID, stageName, status)
}

// ActiveJobs returns every Pending or Running job of the given types, used
// by the job monitor's poll loop (spec §4.7). limit applies per status.
func (s *Service) ActiveJobs(ctx context.Context, types []Type, limit int) ([]*JobState, error) {
	pending, err := s.repo.FindByStatus(ctx, StatusPending, types, limit)
	if err != nil {
		return nil, err
	}
	running, err := s.repo.FindByStatus(ctx, StatusRunning, types, limit)
	if err != nil {
		return nil, err
	}
	return append(pending, running...), nil
}

// MarkStalled records an observation-only stall on jobID (spec §4.7). It
// round-trips through Save rather than a dedicated column update since the
// stall observation is rare compared to the hot-path increments above.
func (s *Service) MarkStalled(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	job.MarkStalled(at)
	return s.repo.Save(ctx, job)
}

// ClearStalled removes a prior stall observation once progress resumes.
func (s *Service) ClearStalled(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.StalledAt() == nil {
		return nil
	}
	job.ClearStalled()
	return s.repo.Save(ctx, job)
}
