// Package bulkops consumes bulk.operation messages (spec.md's data model
// names the queue; SPEC_FULL.md §5.2 assigns it a closed opType union).
// Both opTypes are thin dispatchers onto existing components: the queue
// itself carries no business logic of its own.
package bulkops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipeline/resume"
)

const (
	// OpRescanCollection re-publishes a collection.scan for one collection.
	OpRescanCollection = "rescan-collection"
	// OpResumeCollection invokes the resume-incomplete coordinator (C9)
	// for one collection.
	OpResumeCollection = "resume-collection"
)

// Consumer handles bulk.operation messages.
type Consumer struct {
	client  messagebus.Enqueuer
	resumer *resume.Coordinator
}

// NewConsumer constructs a bulkops Consumer.
func NewConsumer(client messagebus.Enqueuer, resumer *resume.Coordinator) *Consumer {
	return &Consumer{client: client, resumer: resumer}
}

// ProcessTask dispatches one bulk.operation task by its opType.
func (c *Consumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload messagebus.BulkOperationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal bulk.operation payload: %w", err)
	}

	collectionID, err := collectionIDParam(payload)
	if err != nil {
		return fmt.Errorf("bulk.operation %s: %w", payload.OpType, err)
	}

	switch payload.OpType {
	case OpRescanCollection:
		task, err := messagebus.NewCollectionScanTask(messagebus.CollectionScanPayload{CollectionID: collectionID})
		if err != nil {
			return fmt.Errorf("build collection.scan for %s: %w", collectionID, err)
		}
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue collection.scan for %s: %w", collectionID, err)
		}
		return nil

	case OpResumeCollection:
		if err := c.resumer.Resume(ctx, collectionID); err != nil {
			return fmt.Errorf("resume collection %s: %w", collectionID, err)
		}
		return nil

	default:
		return fmt.Errorf("bulk.operation: unknown opType %q", payload.OpType)
	}
}

// collectionIDParam extracts the "collection_id" parameter both opTypes
// require. json.Unmarshal into map[string]any decodes it as a string.
func collectionIDParam(p messagebus.BulkOperationPayload) (uuid.UUID, error) {
	raw, ok := p.Parameters["collection_id"]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing parameter %q", "collection_id")
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("parameter %q is not a string", "collection_id")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parameter %q is not a uuid: %w", "collection_id", err)
	}
	return id, nil
}
