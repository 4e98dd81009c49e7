package messagebus

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// NewLibraryScanTask builds a library.scan task (spec.md §6: low queue, 2 workers).
func NewLibraryScanTask(p LibraryScanPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLibraryScan, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueLow),
	), nil
}

// NewCollectionScanTask builds a collection.scan task (spec.md §6: default queue).
func NewCollectionScanTask(p CollectionScanPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCollectionScan, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

// NewImageProcessingTask builds an image.processing task (spec.md §6: default queue).
func NewImageProcessingTask(p ImageProcessingPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageProcessing, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

// NewThumbnailGenerationTask builds a thumbnail.generation task (spec.md §6: critical queue).
func NewThumbnailGenerationTask(p ThumbnailGenerationPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeThumbnailGeneration, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(1*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// NewCacheGenerationTask builds a cache.generation task (spec.md §6: critical queue).
func NewCacheGenerationTask(p CacheGenerationPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCacheGeneration, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// NewBulkOperationTask builds a bulk.operation task (spec.md §6: low queue).
func NewBulkOperationTask(p BulkOperationPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBulkOperation, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueLow),
	), nil
}
