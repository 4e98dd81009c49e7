// Package dlqrecovery implements C10: on worker start, drain any archived
// (dead-lettered) tasks back onto their original queue (spec §4.6).
//
// spec §4.6 is phrased for an AMQP broker: QoS prefetch=1, NACK
// requeue=true, an x-death header fallback, publish-before-ack ordering.
// asynq has no broker-level prefetch or NACK; the equivalent primitive is
// asynq.Inspector, which already gives native access to the archived set
// per queue. The mapping used here:
//   - QoS prefetch=1            -> process one archived task at a time, in
//     a single goroutine, instead of a broker-level channel setting.
//   - MessageType header, with
//     x-death routing-key fallback -> collapses to Task.Type(), which
//     asynq preserves on every delivery including archived ones. There is
//     no case where it is absent.
//   - NACK requeue=true         -> leave the task archived; it is picked
//     up again on the next pass or the next worker start.
//   - publish first, ack second -> EnqueueContext the task back onto its
//     queue, then Inspector.DeleteTask the archived entry. A crash between
//     the two leaves the message in the DLQ, never lost, and the eventual
//     retry is safe because every pipeline consumer is idempotent (§4.4).
package dlqrecovery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

// Inspector is the narrow slice of *asynq.Inspector this package depends
// on, declared at the point of use so tests can supply a fake in place of
// a live redis connection.
type Inspector interface {
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// recoverableTypes is spec §4.6's closed routing-key table, expressed as
// the task types messagebus already hands out (see tasks.go).
var recoverableTypes = map[string]bool{
	messagebus.TypeLibraryScan:         true,
	messagebus.TypeCollectionScan:      true,
	messagebus.TypeImageProcessing:     true,
	messagebus.TypeThumbnailGeneration: true,
	messagebus.TypeCacheGeneration:     true,
	messagebus.TypeBulkOperation:       true,
	messagebus.TypeCollectionCreation:  true,
}

var queues = []string{messagebus.QueueCritical, messagebus.QueueDefault, messagebus.QueueLow}

// Service drains the archived task set on worker start.
type Service struct {
	inspector Inspector
	client    messagebus.Enqueuer

	pollInterval time.Duration
	zeroWindow   time.Duration
	idleTimeout  time.Duration
	hardCap      time.Duration
}

// NewService constructs a dlqrecovery Service with spec §4.6's default
// timings: a zero-streak window of 5s, an idle-no-recovery timeout of 10s,
// and a 30 minute hard cap.
func NewService(inspector Inspector, client messagebus.Enqueuer) *Service {
	return &Service{
		inspector:    inspector,
		client:       client,
		pollInterval: 2500 * time.Millisecond,
		zeroWindow:   5 * time.Second,
		idleTimeout:  10 * time.Second,
		hardCap:      30 * time.Minute,
	}
}

// Drain runs the recovery loop until the archived set reads empty twice
// within the zero-streak window, until idleTimeout passes with no task
// recovered, or at the hard cap, whichever comes first.
func (s *Service) Drain(ctx context.Context) error {
	start := time.Now()
	lastActivityAt := start
	zeroStreak := 0
	var firstZeroAt time.Time

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if time.Since(start) > s.hardCap {
			log.Println("dlqrecovery: hard cap reached, stopping")
			return nil
		}

		recovered, totalArchived, err := s.drainOnePass(ctx)
		if err != nil {
			log.Printf("dlqrecovery: pass error: %v", err)
		}
		if recovered > 0 {
			lastActivityAt = time.Now()
			log.Printf("dlqrecovery: recovered %d archived task(s)", recovered)
		}

		if totalArchived == 0 {
			if zeroStreak == 0 {
				firstZeroAt = time.Now()
			}
			zeroStreak++
			if zeroStreak >= 2 && time.Since(firstZeroAt) <= s.zeroWindow {
				log.Println("dlqrecovery: archived set read empty twice, stopping")
				return nil
			}
		} else {
			zeroStreak = 0
		}

		if time.Since(lastActivityAt) > s.idleTimeout {
			log.Println("dlqrecovery: idle timeout reached, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainOnePass walks every queue's archived set once, republishing every
// task whose type is in the closed mapping table and removing it from the
// archive only after the republish succeeds. totalArchived counts every
// task seen this pass, mapped or not, so the caller can detect an empty
// DLQ even when some entries are permanently stuck (unmapped type).
func (s *Service) drainOnePass(ctx context.Context) (recovered, totalArchived int, err error) {
	for _, q := range queues {
		tasks, lerr := s.inspector.ListArchivedTasks(q)
		if lerr != nil {
			err = fmt.Errorf("list archived tasks in queue %s: %w", q, lerr)
			continue
		}
		totalArchived += len(tasks)

		for _, info := range tasks {
			if !recoverableTypes[info.Type] {
				log.Printf("dlqrecovery: unmapped task type %q (queue=%s id=%s), leaving for manual review", info.Type, q, info.ID)
				continue
			}

			task := asynq.NewTask(info.Type, info.Payload)
			if _, perr := s.client.EnqueueContext(ctx, task, asynq.Queue(q)); perr != nil {
				log.Printf("dlqrecovery: republish failed (queue=%s id=%s): %v, leaving archived", q, info.ID, perr)
				continue
			}
			if derr := s.inspector.DeleteTask(q, info.ID); derr != nil {
				log.Printf("dlqrecovery: republished but failed to remove archived entry (queue=%s id=%s): %v", q, info.ID, derr)
				continue
			}
			recovered++
		}
	}
	return recovered, totalArchived, err
}
