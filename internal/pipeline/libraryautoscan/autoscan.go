// Package libraryautoscan triggers library.scan for every auto-scan
// library on a fixed cadence (spec.md §3's Library.auto-scan flag; C5
// itself only consumes library.scan, it never decides when to publish
// one). cmd/scheduler owns the cadence the way cmd/scheduler/main.go's
// teacher original owns the loan/repair reminder cadence, but the
// library set is dynamic, so a time.Ticker drives it instead of a
// single asynq.Scheduler cron entry with a fixed payload.
package libraryautoscan

import (
	"context"
	"log"
	"time"

	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/domain/library"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

// Trigger publishes one library.scan task per registered auto-scan
// library on a fixed interval.
type Trigger struct {
	registry library.Registry
	jobs     *jobstate.Service
	client   messagebus.Enqueuer
	interval time.Duration
}

// New constructs a Trigger. interval is the poll cadence.
func New(registry library.Registry, jobs *jobstate.Service, client messagebus.Enqueuer, interval time.Duration) *Trigger {
	return &Trigger{registry: registry, jobs: jobs, client: client, interval: interval}
}

// Run blocks, firing Sweep on every tick until ctx is canceled.
func (t *Trigger) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Sweep publishes one library.scan per auto-scan library.
func (t *Trigger) Sweep(ctx context.Context) {
	libs, err := t.registry.ListAutoScan(ctx)
	if err != nil {
		log.Printf("libraryautoscan: list auto-scan libraries failed: %v", err)
		return
	}

	for _, lib := range libs {
		job, err := t.jobs.CreateJob(ctx, jobstate.TypeCollectionScan, nil)
		if err != nil {
			log.Printf("libraryautoscan: create job for %s: %v", lib.ID, err)
			continue
		}

		task, err := messagebus.NewLibraryScanTask(messagebus.LibraryScanPayload{
			LibraryID:   lib.ID,
			LibraryPath: lib.RootPath,
			ScanJobID:   job.ID(),
		})
		if err != nil {
			log.Printf("libraryautoscan: build library.scan for %s: %v", lib.ID, err)
			continue
		}
		if _, err := t.client.EnqueueContext(ctx, task); err != nil {
			log.Printf("libraryautoscan: enqueue library.scan for %s: %v", lib.ID, err)
			continue
		}
	}
}
