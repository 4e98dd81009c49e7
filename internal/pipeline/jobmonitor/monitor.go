// Package jobmonitor implements C11: a periodic sweep that completes jobs
// whose last increment happened on a path that skipped its own completion
// check, and flags jobs that have stopped making progress (spec §4.7).
//
// The stage increments made by batchgen, collectionscan, imageprocessing
// and resume never check for completion, so this sweep is what marks
// stages and jobs Completed. The one exception is resume's
// direct-reference path, which sets its own job Completed.
package jobmonitor

import (
	"context"
	"log"
	"time"

	"github.com/imagevault/pipeline/internal/domain/jobstate"
)

// monitoredTypes is spec §4.7's fixed set of job types this sweep considers.
var monitoredTypes = []jobstate.Type{jobstate.TypeCollectionScan, jobstate.TypeResumeCollection}

// Monitor periodically reconciles Pending/Running job state.
type Monitor struct {
	jobs           *jobstate.Service
	interval       time.Duration
	stallThreshold time.Duration
	batchLimit     int
}

// New constructs a Monitor with spec §4.7's defaults: a 5s poll interval
// and a 30s no-progress stall threshold. scheduler.go's cron registration
// can't express this cadence (asynq.Scheduler's floor is one minute), so
// this runs its own time.Ticker instead of going through asynq.Scheduler.
func New(jobs *jobstate.Service) *Monitor {
	return &Monitor{
		jobs:           jobs,
		interval:       5 * time.Second,
		stallThreshold: 30 * time.Second,
		batchLimit:     200,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	jobs, err := m.jobs.ActiveJobs(ctx, monitoredTypes, m.batchLimit)
	if err != nil {
		log.Printf("jobmonitor: list active jobs failed: %v", err)
		return
	}
	for _, job := range jobs {
		m.reconcile(ctx, job)
	}
}

// reconcile applies spec §4.7's three checks, in order, to one job.
func (m *Monitor) reconcile(ctx context.Context, job *jobstate.JobState) {
	for name := range job.Stages() {
		if job.CompleteStageIfDone(name) {
			if err := m.jobs.SetStageStatus(ctx, job.ID(), name, jobstate.StageStatusCompleted); err != nil {
				log.Printf("jobmonitor: set stage %s completed for job %s failed: %v", name, job.ID(), err)
			}
		}
	}

	if job.AllStagesComplete() && job.Status() != jobstate.StatusCompleted {
		if err := m.jobs.SetStatus(ctx, job.ID(), jobstate.StatusCompleted); err != nil {
			log.Printf("jobmonitor: complete job %s failed: %v", job.ID(), err)
		}
		return
	}

	stalled := job.TotalItems() > 0 && time.Since(job.LastProgressAt()) >= m.stallThreshold
	switch {
	case stalled && job.StalledAt() == nil:
		log.Printf("jobmonitor: WARNING job %s (%s) has made no progress for %s, marking stalled",
			job.ID(), job.JobType(), time.Since(job.LastProgressAt()).Round(time.Second))
		if err := m.jobs.MarkStalled(ctx, job.ID(), time.Now()); err != nil {
			log.Printf("jobmonitor: mark stalled for job %s failed: %v", job.ID(), err)
		}
	case !stalled && job.StalledAt() != nil:
		if err := m.jobs.ClearStalled(ctx, job.ID()); err != nil {
			log.Printf("jobmonitor: clear stalled for job %s failed: %v", job.ID(), err)
		}
	}
}
