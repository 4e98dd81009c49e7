package messagebus

import "github.com/google/uuid"

// LibraryScanPayload is the library.scan message body (spec.md §3).
type LibraryScanPayload struct {
	LibraryID   uuid.UUID `json:"library_id"`
	LibraryPath string    `json:"library_path"`
	ScanJobID   uuid.UUID `json:"scan_job_id"`
}

// CollectionScanPayload is the collection.scan message body.
type CollectionScanPayload struct {
	CollectionID   uuid.UUID `json:"collection_id"`
	CollectionPath string    `json:"collection_path"`
	ScanJobID      uuid.UUID `json:"scan_job_id"`
}

// ImageProcessingPayload is the image.processing message body.
type ImageProcessingPayload struct {
	CollectionID uuid.UUID `json:"collection_id"`
	ImageID      uuid.UUID `json:"image_id"`
	ImagePath    string    `json:"image_path"`
	ScanJobID    uuid.UUID `json:"scan_job_id"`
}

// ThumbnailGenerationPayload is the thumbnail.generation message body.
type ThumbnailGenerationPayload struct {
	CollectionID  uuid.UUID `json:"collection_id"`
	ImageID       uuid.UUID `json:"image_id"`
	ImagePath     string    `json:"image_path"`
	ImageFilename string    `json:"image_filename"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	JobID         uuid.UUID `json:"job_id"`
	ScanJobID     uuid.UUID `json:"scan_job_id"`
}

// CacheGenerationPayload is the cache.generation message body.
type CacheGenerationPayload struct {
	CollectionID     uuid.UUID `json:"collection_id"`
	ImageID          uuid.UUID `json:"image_id"`
	ImagePath        string    `json:"image_path"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Format           string    `json:"format"`
	Quality          int       `json:"quality"`
	PreserveOriginal bool      `json:"preserve_original"`
	ForceRegenerate  bool      `json:"force_regenerate"`
	JobID            uuid.UUID `json:"job_id"`
	ScanJobID        uuid.UUID `json:"scan_job_id"`
}

// BulkOperationPayload is the bulk.operation message body.
type BulkOperationPayload struct {
	OpType     string         `json:"op_type"`
	Parameters map[string]any `json:"parameters"`
}
