package collection

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists collections and their embedded image/thumbnail/cache
// arrays. The array-mutating methods are the Go-idiomatic shape of spec
// §2's "atomic $inc / $push / array-pull" primitives: each is a single
// round trip and is safe to call more than once with the same entries.
type Repository interface {
	Save(ctx context.Context, c *Collection) error
	FindByID(ctx context.Context, id uuid.UUID) (*Collection, error)
	FindByPath(ctx context.Context, path string) (*Collection, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// UpsertSettings applies a settings update without touching the
	// embedded arrays (spec §4.5's useDirectFileAccess propagation rule).
	UpsertSettings(ctx context.Context, id uuid.UUID, s Settings) error

	// AddImage atomically pushes one image into the collection's images
	// array if an image with the same id is not already present.
	// Returns (added=false, nil) on a no-op duplicate push.
	AddImage(ctx context.Context, collectionID uuid.UUID, img Image) (added bool, err error)

	// UpdateImageMetadata fills in the format/dimensions/size the
	// image-processing consumer determines by decoding the source once
	// collection-scan has already pushed the row (spec §4.3).
	UpdateImageMetadata(ctx context.Context, collectionID, imageID uuid.UUID, sizeBytes int64, width, height int, format string) error

	// AddThumbnailsBatch atomically pushes a batch of thumbnail entries for
	// one collection in a single round trip (spec §4.4 step 3). Existing
	// entries for the same (imageId, width, height) are overwritten.
	AddThumbnailsBatch(ctx context.Context, collectionID uuid.UUID, entries []ThumbnailEntry) error

	// AddCacheImagesBatch atomically pushes a batch of cache entries for one
	// collection in a single round trip. Existing entries for the same
	// imageId are overwritten.
	AddCacheImagesBatch(ctx context.Context, collectionID uuid.UUID, entries []CacheEntry) error

	// IncrementCacheFolderSize atomically adds delta to the collection's
	// cumulative cache-folder size counter (spec §6).
	IncrementCacheFolderSize(ctx context.Context, collectionID uuid.UUID, deltaBytes int64) error
}
