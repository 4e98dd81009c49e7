// Package collectionscan implements C6: enumerating the images within one
// collection (directory listing or archive central-directory read),
// upserting image records, and emitting image-processing messages
// (spec §4.2).
package collectionscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/archive"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// DefaultMaxZipEntrySizeBytes is the §4.2 default cap on a single archive
// entry's uncompressed size (20 GiB).
const DefaultMaxZipEntrySizeBytes int64 = 20 << 30

// discovered describes one image found during enumeration, before it has
// a collection-scoped id (the Repository assigns identity on AddImage).
type discovered struct {
	filename     string
	relativePath string
	sizeBytes    int64
}

// Consumer handles collection.scan messages.
type Consumer struct {
	collections          collection.Repository
	jobs                 *jobstate.Service
	client               messagebus.Enqueuer
	maxZipEntrySizeBytes int64
}

// NewConsumer constructs a collection-scan Consumer.
func NewConsumer(collections collection.Repository, jobs *jobstate.Service, client messagebus.Enqueuer) *Consumer {
	return &Consumer{
		collections:          collections,
		jobs:                 jobs,
		client:               client,
		maxZipEntrySizeBytes: DefaultMaxZipEntrySizeBytes,
	}
}

// ProcessTask handles one collection.scan task (spec §4.2).
func (c *Consumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload messagebus.CollectionScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal collection.scan payload: %w", err)
	}

	col, err := c.collections.FindByID(ctx, payload.CollectionID)
	if err != nil {
		return fmt.Errorf("load collection %s: %w", payload.CollectionID, err)
	}

	var found []discovered
	var failedEntries int
	if col.Type() == collection.TypeArchive {
		found, failedEntries, err = c.enumerateArchive(col.Path())
	} else {
		found, err = c.enumerateDirectory(col.Path())
	}
	if err != nil {
		return fmt.Errorf("enumerate collection %s: %w", payload.CollectionID, err)
	}

	if c.jobs != nil && payload.ScanJobID != uuid.Nil {
		if err := c.jobs.InitStage(ctx, payload.ScanJobID, "images", len(found)); err != nil {
			log.Printf("collectionscan: InitStage images for job %s: %v", payload.ScanJobID, err)
		}
		for i := 0; i < failedEntries; i++ {
			c.jobs.IncrementFailed(ctx, payload.ScanJobID)
		}
	}

	published := 0
	for _, d := range found {
		img := collection.NewImage(payload.CollectionID, d.filename, d.relativePath, d.sizeBytes, 0, 0, strings.TrimPrefix(filepath.Ext(d.filename), "."))

		added, err := c.collections.AddImage(ctx, payload.CollectionID, img)
		if err != nil {
			log.Printf("collectionscan: AddImage %s in collection %s: %v", d.relativePath, payload.CollectionID, err)
			continue
		}
		if !added {
			// Already present from a prior scan: idempotent re-scan, no
			// re-publish (spec §4.2 "existing images are left alone").
			continue
		}

		imgPayload := messagebus.ImageProcessingPayload{
			CollectionID: payload.CollectionID,
			ImageID:      img.ID,
			ImagePath:    img.FullPath(col),
			ScanJobID:    payload.ScanJobID,
		}
		task, err := messagebus.NewImageProcessingTask(imgPayload)
		if err != nil {
			log.Printf("collectionscan: build image.processing task for %s: %v", d.relativePath, err)
			continue
		}
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			log.Printf("collectionscan: enqueue image.processing for %s: %v", d.relativePath, err)
			continue
		}
		published++
	}

	if c.jobs != nil && payload.ScanJobID != uuid.Nil {
		c.jobs.IncrementStageProgress(ctx, payload.ScanJobID, "images", published, 0)
	}

	log.Printf("collectionscan: collection %s enumerated %d images, published %d", payload.CollectionID, len(found), published)
	return nil
}

// enumerateDirectory recursively walks a folder collection, filtering by
// allowed extension and returning entries in deterministic lexicographic
// order by relative path (spec §4.2).
func (c *Consumer) enumerateDirectory(root string) ([]discovered, error) {
	var out []discovered
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, discovered{
			filename:     filepath.Base(path),
			relativePath: collection.NormalizeEntryPath(rel),
			sizeBytes:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relativePath < out[j].relativePath })
	return out, nil
}

// enumerateArchive reads the archive's central directory without
// extracting, validating per-entry size against maxZipEntrySizeBytes
// (spec §4.2). Entries exceeding the cap are skipped and counted as a
// failure rather than included.
func (c *Consumer) enumerateArchive(archivePath string) ([]discovered, int, error) {
	r, err := archive.Open(archivePath)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	entries, err := r.Entries()
	if err != nil {
		return nil, 0, err
	}

	var out []discovered
	failed := 0
	for _, e := range entries {
		name := collection.NormalizeEntryPath(e.Name)
		if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if e.Size > c.maxZipEntrySizeBytes {
			failed++
			continue
		}
		out = append(out, discovered{
			filename:     filepath.Base(name),
			relativePath: name,
			sizeBytes:    e.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relativePath < out[j].relativePath })
	return out, failed, nil
}
