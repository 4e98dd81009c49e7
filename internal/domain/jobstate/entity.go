// Package jobstate tracks per-job progress counters and per-stage
// sub-counters across the scan/generation pipeline (spec §3, §4.1).
package jobstate

import (
	"time"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/shared"
)

// Type identifies what kind of work a job tracks.
type Type string

const (
	TypeCollectionScan   Type = "collection-scan"
	TypeResumeCollection Type = "resume-collection"
	TypeBulkOperation    Type = "bulk-operation"
)

// Status is the job's lifecycle status. Pending -> Running -> one of the
// three terminal statuses; terminal statuses never transition further.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StageStatus is the lifecycle status of one named sub-counter.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
)

// Stage is a named sub-counter on a job (e.g. "thumbnail", "cache", "images").
type Stage struct {
	Name           string
	TotalItems     int
	CompletedItems int
	FailedItems    int
	Status         StageStatus
}

// IsComplete reports whether the stage has reached its total (spec §4.7).
func (s Stage) IsComplete() bool {
	return s.CompletedItems >= s.TotalItems
}

// JobState is the aggregate tracking one scan/resume/bulk job's progress.
type JobState struct {
	id              uuid.UUID
	jobType         Type
	status          Status
	collectionID    *uuid.UUID
	totalItems      int
	completedItems  int
	failedItems     int
	skippedItems    int
	errorCounts     map[string]int
	stages          map[string]*Stage
	lastProgressAt  time.Time
	stalledAt       *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewJobState creates a new Pending job. collectionID is nil for jobs not
// scoped to a single collection (e.g. a library-wide bulk operation).
func NewJobState(jobType Type, collectionID *uuid.UUID) (*JobState, error) {
	if jobType == "" {
		return nil, shared.NewFieldError(shared.ErrInvalidInput, "job_type", "job type is required")
	}
	now := time.Now()
	return &JobState{
		id:             shared.NewUUID(),
		jobType:        jobType,
		status:         StatusPending,
		collectionID:   collectionID,
		errorCounts:    make(map[string]int),
		stages:         make(map[string]*Stage),
		lastProgressAt: now,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructJobState rebuilds a JobState from persisted fields.
func ReconstructJobState(
	id uuid.UUID,
	jobType Type,
	status Status,
	collectionID *uuid.UUID,
	totalItems, completedItems, failedItems, skippedItems int,
	errorCounts map[string]int,
	stages map[string]*Stage,
	lastProgressAt time.Time,
	stalledAt *time.Time,
	createdAt, updatedAt time.Time,
) *JobState {
	if errorCounts == nil {
		errorCounts = make(map[string]int)
	}
	if stages == nil {
		stages = make(map[string]*Stage)
	}
	return &JobState{
		id:             id,
		jobType:        jobType,
		status:         status,
		collectionID:   collectionID,
		totalItems:     totalItems,
		completedItems: completedItems,
		failedItems:    failedItems,
		skippedItems:   skippedItems,
		errorCounts:    errorCounts,
		stages:         stages,
		lastProgressAt: lastProgressAt,
		stalledAt:      stalledAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// Getters
func (j *JobState) ID() uuid.UUID             { return j.id }
func (j *JobState) JobType() Type             { return j.jobType }
func (j *JobState) Status() Status            { return j.status }
func (j *JobState) CollectionID() *uuid.UUID  { return j.collectionID }
func (j *JobState) TotalItems() int           { return j.totalItems }
func (j *JobState) CompletedItems() int       { return j.completedItems }
func (j *JobState) FailedItems() int          { return j.failedItems }
func (j *JobState) SkippedItems() int         { return j.skippedItems }
func (j *JobState) ErrorCounts() map[string]int {
	out := make(map[string]int, len(j.errorCounts))
	for k, v := range j.errorCounts {
		out[k] = v
	}
	return out
}
func (j *JobState) LastProgressAt() time.Time { return j.lastProgressAt }
func (j *JobState) StalledAt() *time.Time     { return j.stalledAt }
func (j *JobState) CreatedAt() time.Time      { return j.createdAt }
func (j *JobState) UpdatedAt() time.Time      { return j.updatedAt }

// Stage returns the named stage, if initialized.
func (j *JobState) Stage(name string) (Stage, bool) {
	s, ok := j.stages[name]
	if !ok {
		return Stage{}, false
	}
	return *s, true
}

// Stages returns a copy of every initialized stage.
func (j *JobState) Stages() map[string]Stage {
	out := make(map[string]Stage, len(j.stages))
	for k, v := range j.stages {
		out[k] = *v
	}
	return out
}

// InitStage creates the stage sub-map entry if absent and (re-)sets its
// total. Safe to call more than once (spec §4.1) — re-initialization with
// the same total is a no-op write, matching the repository's
// ON CONFLICT...DO UPDATE mapping.
func (j *JobState) InitStage(name string, totalItems int) {
	if s, ok := j.stages[name]; ok {
		s.TotalItems = totalItems
		return
	}
	j.stages[name] = &Stage{Name: name, TotalItems: totalItems, Status: StageStatusPending}
	j.updatedAt = time.Now()
}

// IncrementStageProgress atomically bumps a stage's completed or failed
// counter. Returns false if the stage was never initialized — a
// SchemaAbsent bug indicator per spec §7 the caller should log loudly and
// otherwise ignore.
func (j *JobState) IncrementStageProgress(name string, completedDelta, failedDelta int) bool {
	s, ok := j.stages[name]
	if !ok {
		return false
	}
	s.CompletedItems += completedDelta
	s.FailedItems += failedDelta
	if s.Status == StageStatusPending {
		s.Status = StageStatusRunning
	}
	j.lastProgressAt = time.Now()
	j.updatedAt = j.lastProgressAt
	return true
}

// CompleteStageIfDone transitions a stage to Completed if it has reached
// its total (used by the job monitor's sweep, spec §4.7).
func (j *JobState) CompleteStageIfDone(name string) bool {
	s, ok := j.stages[name]
	if !ok {
		return false
	}
	if s.IsComplete() && s.Status != StageStatusCompleted {
		s.Status = StageStatusCompleted
		j.updatedAt = time.Now()
		return true
	}
	return false
}

// AllStagesComplete reports whether every initialized stage is Completed.
// A job with zero stages is not considered complete by this check.
func (j *JobState) AllStagesComplete() bool {
	if len(j.stages) == 0 {
		return false
	}
	for _, s := range j.stages {
		if s.Status != StageStatusCompleted {
			return false
		}
	}
	return true
}

// IncrementCompleted bumps the job-wide completed counter (spec §4.1).
func (j *JobState) IncrementCompleted(n int) {
	j.completedItems += n
	j.lastProgressAt = time.Now()
	j.updatedAt = j.lastProgressAt
}

// IncrementFailed bumps the job-wide failed counter.
func (j *JobState) IncrementFailed(n int) {
	j.failedItems += n
	j.lastProgressAt = time.Now()
	j.updatedAt = j.lastProgressAt
}

// IncrementSkipped bumps the job-wide skipped counter.
func (j *JobState) IncrementSkipped(n int) {
	j.skippedItems += n
	j.lastProgressAt = time.Now()
	j.updatedAt = j.lastProgressAt
}

// SetTotalItems sets the job-wide total, typically at job creation once the
// total is known.
func (j *JobState) SetTotalItems(total int) {
	j.totalItems = total
	j.updatedAt = time.Now()
}

// WithinTotal reports the invariant completed+failed+skipped <= total
// (spec §8 invariant 3).
func (j *JobState) WithinTotal() bool {
	if j.totalItems == 0 {
		return true
	}
	return j.completedItems+j.failedItems+j.skippedItems <= j.totalItems
}

// TrackError bumps the named error-kind bucket and reports whether the new
// count just crossed a multiple of 10 (spec §4.1's warning-observation trigger).
func (j *JobState) TrackError(kind string) (total int, crossedTen bool) {
	prev := j.errorCounts[kind]
	next := prev + 1
	j.errorCounts[kind] = next
	j.updatedAt = time.Now()
	return next, prev/10 != next/10
}

// SetStatus performs a guarded status transition. Terminal statuses never
// transition further (spec §3 invariant).
func (j *JobState) SetStatus(status Status) bool {
	if j.status.IsTerminal() {
		return false
	}
	j.status = status
	j.updatedAt = time.Now()
	return true
}

// MarkStalled records an observation-only stall (spec §4.7). It does not
// change Status, preserving the Pending/Running/terminal state machine.
func (j *JobState) MarkStalled(at time.Time) {
	j.stalledAt = &at
}

// ClearStalled removes a prior stall observation once progress resumes.
func (j *JobState) ClearStalled() {
	j.stalledAt = nil
}
