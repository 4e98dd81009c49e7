// Package imageprocessing implements C7: determining one image's real
// format/dimensions/size and fanning out one thumbnail-generation and one
// cache-generation message per image (spec §4.3). It only queues; it
// never produces an artifact itself.
package imageprocessing

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/archive"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

const (
	// DefaultThumbnailSize is the fallback target when a collection carries
	// no explicit thumbnail setting (spec §6).
	DefaultThumbnailSize = 300
	// DefaultCacheWidth/DefaultCacheHeight are the fallback cache target
	// dimensions (spec §6).
	DefaultCacheWidth  = 1920
	DefaultCacheHeight = 1080
	// DefaultCacheFormat/DefaultCacheQuality are the fallback cache
	// encoding settings (spec §6).
	DefaultCacheFormat  = "jpeg"
	DefaultCacheQuality = 85
)

// Consumer handles image.processing messages.
type Consumer struct {
	collections collection.Repository
	jobs        *jobstate.Service
	client      messagebus.Enqueuer
}

// NewConsumer constructs an image-processing Consumer.
func NewConsumer(collections collection.Repository, jobs *jobstate.Service, client messagebus.Enqueuer) *Consumer {
	return &Consumer{collections: collections, jobs: jobs, client: client}
}

// ProcessTask handles one image.processing task (spec §4.3).
func (c *Consumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload messagebus.ImageProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal image.processing payload: %w", err)
	}

	col, err := c.collections.FindByID(ctx, payload.CollectionID)
	if err != nil {
		return fmt.Errorf("load collection %s: %w", payload.CollectionID, err)
	}

	img, ok := col.FindImage(payload.ImageID)
	if !ok {
		log.Printf("imageprocessing: image %s not found in collection %s, skipping", payload.ImageID, payload.CollectionID)
		return nil
	}

	width, height, format, err := decodeHeader(col, img)
	if err != nil {
		log.Printf("imageprocessing: decode header for %s: %v", payload.ImagePath, err)
		if c.jobs != nil && payload.ScanJobID != uuid.Nil {
			c.jobs.TrackError(ctx, payload.ScanJobID, "DecodeFailure")
			c.jobs.IncrementStageProgress(ctx, payload.ScanJobID, "images", 0, 1)
		}
		return nil
	}

	if err := c.collections.UpdateImageMetadata(ctx, payload.CollectionID, payload.ImageID, img.SizeBytes, width, height, format); err != nil {
		return fmt.Errorf("update image metadata for %s: %w", payload.ImageID, err)
	}

	settings := col.Settings()

	if settings.GenerateThumbnails {
		if err := c.publishThumbnail(ctx, col, img, payload, settings); err != nil {
			log.Printf("imageprocessing: publish thumbnail.generation for %s: %v", payload.ImagePath, err)
		}
	}
	if settings.GenerateCache {
		if err := c.publishCache(ctx, col, img, payload, settings); err != nil {
			log.Printf("imageprocessing: publish cache.generation for %s: %v", payload.ImagePath, err)
		}
	}

	if c.jobs != nil && payload.ScanJobID != uuid.Nil {
		c.jobs.IncrementStageProgress(ctx, payload.ScanJobID, "images", 1, 0)
	}

	return nil
}

func (c *Consumer) publishThumbnail(ctx context.Context, col *collection.Collection, img collection.Image, payload messagebus.ImageProcessingPayload, settings collection.Settings) error {
	width, height := settings.ThumbnailWidth, settings.ThumbnailHeight
	if width == 0 {
		width = DefaultThumbnailSize
	}
	if height == 0 {
		height = DefaultThumbnailSize
	}
	task, err := messagebus.NewThumbnailGenerationTask(messagebus.ThumbnailGenerationPayload{
		CollectionID:  payload.CollectionID,
		ImageID:       payload.ImageID,
		ImagePath:     payload.ImagePath,
		ImageFilename: img.Filename,
		Width:         width,
		Height:        height,
		ScanJobID:     payload.ScanJobID,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

func (c *Consumer) publishCache(ctx context.Context, col *collection.Collection, img collection.Image, payload messagebus.ImageProcessingPayload, settings collection.Settings) error {
	width, height := settings.CacheWidth, settings.CacheHeight
	if width == 0 {
		width = DefaultCacheWidth
	}
	if height == 0 {
		height = DefaultCacheHeight
	}
	format := settings.CacheFormat
	if format == "" {
		format = DefaultCacheFormat
	}
	quality := settings.CacheQuality
	if quality == 0 {
		quality = DefaultCacheQuality
	}
	task, err := messagebus.NewCacheGenerationTask(messagebus.CacheGenerationPayload{
		CollectionID: payload.CollectionID,
		ImageID:      payload.ImageID,
		ImagePath:    payload.ImagePath,
		Width:        width,
		Height:       height,
		Format:       format,
		Quality:      quality,
		ScanJobID:    payload.ScanJobID,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// decodeHeader reads just enough of the source to determine its format and
// pixel dimensions, without a full pixel decode (spec §4.3). Plain files are
// opened directly; archive members are streamed from the archive's entry
// reader since they have no standalone path on disk.
func decodeHeader(col *collection.Collection, img collection.Image) (width, height int, format string, err error) {
	if col.Type() == collection.TypeArchive {
		return decodeArchiveEntryHeader(col.Path(), img.RelativePath)
	}
	return decodeFileHeader(filepath.Join(col.Path(), img.RelativePath))
}

func decodeFileHeader(path string) (int, int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return decodeConfigHeader(f)
}

func decodeArchiveEntryHeader(archivePath, entryPath string) (int, int, string, error) {
	r, err := archive.Open(archivePath)
	if err != nil {
		return 0, 0, "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	rc, err := r.Open(entryPath)
	if err != nil {
		return 0, 0, "", fmt.Errorf("open entry %s in %s: %w", entryPath, archivePath, err)
	}
	defer rc.Close()

	return decodeConfigHeader(rc)
}

func decodeConfigHeader(r io.Reader) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, strings.ToLower(format), nil
}
