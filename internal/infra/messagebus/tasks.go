package messagebus

// Task type constants double as spec.md §3's routing keys. Asynq retains
// a task's Type() on every delivery, including archived (dead-lettered)
// ones, so this closed set is also the DLQ recovery mapping table
// (spec.md §4.6).
const (
	TypeLibraryScan          = "library.scan"
	TypeCollectionScan       = "collection.scan"
	TypeImageProcessing      = "image.processing"
	TypeThumbnailGeneration  = "thumbnail.generation"
	TypeCacheGeneration      = "cache.generation"
	TypeBulkOperation        = "bulk.operation"
	TypeCollectionCreation   = "collection.creation"
)

// Queue names carry the per-queue prefetch/concurrency profile spec.md
// §6's table specifies, collapsed onto asynq's three priority weights.
const (
	QueueCritical = "critical" // thumbnail.generation, cache.generation: 100 prefetch / 8 workers
	QueueDefault  = "default"  // collection.scan, image.processing: 20-100 prefetch / 4-8 workers
	QueueLow      = "low"      // library.scan, bulk.operation: 10 prefetch / 2 workers
)
