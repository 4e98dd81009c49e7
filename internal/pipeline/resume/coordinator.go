// Package resume implements C9, the resume-incomplete coordinator: bring
// a collection to a state where every image has a thumbnail entry and a
// cache entry (or a sentinel) without regenerating artifacts whose bytes
// already exist on disk (spec §4.5).
package resume

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

// Coordinator drives one collection's resume pass.
type Coordinator struct {
	collections collection.Repository
	jobs        *jobstate.Service
	client      messagebus.Enqueuer
}

// NewCoordinator constructs a resume Coordinator.
func NewCoordinator(collections collection.Repository, jobs *jobstate.Service, client messagebus.Enqueuer) *Coordinator {
	return &Coordinator{collections: collections, jobs: jobs, client: client}
}

// Resume runs the procedure of spec §4.5 for one collection: partition
// images by what they're missing, create a resume-collection job with both
// stages initialized up front, and publish one generation message per
// needed item. If useDirectFileAccess is set on a Folder collection, it
// instead writes direct-reference entries synchronously and skips
// generation entirely.
func (c *Coordinator) Resume(ctx context.Context, collectionID uuid.UUID) error {
	col, err := c.collections.FindByID(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("load collection %s: %w", collectionID, err)
	}

	settings := col.Settings()
	if settings.UseDirectFileAccess && col.Type() == collection.TypeFolder {
		return c.resumeDirectReference(ctx, col)
	}

	needsThumb := col.ImagesMissingThumbnail()
	needsCache := col.ImagesMissingCache()
	if len(needsThumb) == 0 && len(needsCache) == 0 {
		return nil
	}

	job, err := c.jobs.CreateJob(ctx, jobstate.TypeResumeCollection, &collectionID)
	if err != nil {
		return fmt.Errorf("create resume job: %w", err)
	}
	if err := c.jobs.InitStage(ctx, job.ID(), "thumbnail", len(needsThumb)); err != nil {
		return fmt.Errorf("init thumbnail stage: %w", err)
	}
	if err := c.jobs.InitStage(ctx, job.ID(), "cache", len(needsCache)); err != nil {
		return fmt.Errorf("init cache stage: %w", err)
	}

	thumbWidth, thumbHeight := settings.ThumbnailWidth, settings.ThumbnailHeight
	if thumbWidth == 0 {
		thumbWidth = defaultThumbnailSize
	}
	if thumbHeight == 0 {
		thumbHeight = defaultThumbnailSize
	}
	for _, img := range needsThumb {
		task, err := messagebus.NewThumbnailGenerationTask(messagebus.ThumbnailGenerationPayload{
			CollectionID:  col.ID(),
			ImageID:       img.ID,
			ImagePath:     img.FullPath(col),
			ImageFilename: img.Filename,
			Width:         thumbWidth,
			Height:        thumbHeight,
			JobID:         job.ID(),
			ScanJobID:     job.ID(),
		})
		if err != nil {
			return fmt.Errorf("build thumbnail.generation for %s: %w", img.ID, err)
		}
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue thumbnail.generation for %s: %w", img.ID, err)
		}
	}

	cacheWidth, cacheHeight := settings.CacheWidth, settings.CacheHeight
	if cacheWidth == 0 {
		cacheWidth = defaultCacheWidth
	}
	if cacheHeight == 0 {
		cacheHeight = defaultCacheHeight
	}
	cacheFormat := settings.CacheFormat
	if cacheFormat == "" {
		cacheFormat = defaultCacheFormat
	}
	cacheQuality := settings.CacheQuality
	if cacheQuality == 0 {
		cacheQuality = defaultCacheQuality
	}
	for _, img := range needsCache {
		task, err := messagebus.NewCacheGenerationTask(messagebus.CacheGenerationPayload{
			CollectionID: col.ID(),
			ImageID:      img.ID,
			ImagePath:    img.FullPath(col),
			Width:        cacheWidth,
			Height:       cacheHeight,
			Format:       cacheFormat,
			Quality:      cacheQuality,
			JobID:        job.ID(),
			ScanJobID:    job.ID(),
		})
		if err != nil {
			return fmt.Errorf("build cache.generation for %s: %w", img.ID, err)
		}
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue cache.generation for %s: %w", img.ID, err)
		}
	}

	return nil
}

const (
	defaultThumbnailSize = 300
	defaultCacheWidth    = 1920
	defaultCacheHeight   = 1080
	defaultCacheFormat   = "jpeg"
	defaultCacheQuality  = 85
)

// resumeDirectReference honors useDirectFileAccess: it writes entries that
// point straight at each image's own file instead of queuing generation,
// then marks the job complete since no asynchronous work remains.
func (c *Coordinator) resumeDirectReference(ctx context.Context, col *collection.Collection) error {
	needsThumb := col.ImagesMissingThumbnail()
	needsCache := col.ImagesMissingCache()
	if len(needsThumb) == 0 && len(needsCache) == 0 {
		return nil
	}

	job, err := c.jobs.CreateJob(ctx, jobstate.TypeResumeCollection, ptrUUID(col.ID()))
	if err != nil {
		return fmt.Errorf("create resume job: %w", err)
	}
	if err := c.jobs.InitStage(ctx, job.ID(), "thumbnail", len(needsThumb)); err != nil {
		return fmt.Errorf("init thumbnail stage: %w", err)
	}
	if err := c.jobs.InitStage(ctx, job.ID(), "cache", len(needsCache)); err != nil {
		return fmt.Errorf("init cache stage: %w", err)
	}

	if len(needsThumb) > 0 {
		entries := make([]collection.ThumbnailEntry, 0, len(needsThumb))
		for _, img := range needsThumb {
			entries = append(entries, collection.ThumbnailEntry{
				ImageID: img.ID, Path: img.FullPath(col), Width: img.Width, Height: img.Height,
				Format: img.Format, SizeBytes: img.SizeBytes,
			})
		}
		if err := c.collections.AddThumbnailsBatch(ctx, col.ID(), entries); err != nil {
			return fmt.Errorf("add direct-reference thumbnails: %w", err)
		}
		c.jobs.IncrementStageProgress(ctx, job.ID(), "thumbnail", len(entries), 0)
	}

	if len(needsCache) > 0 {
		entries := make([]collection.CacheEntry, 0, len(needsCache))
		for _, img := range needsCache {
			entries = append(entries, collection.CacheEntry{
				ImageID: img.ID, Path: img.FullPath(col), Format: img.Format,
				Quality: 100, SizeBytes: img.SizeBytes,
			})
		}
		if err := c.collections.AddCacheImagesBatch(ctx, col.ID(), entries); err != nil {
			return fmt.Errorf("add direct-reference cache entries: %w", err)
		}
		c.jobs.IncrementStageProgress(ctx, job.ID(), "cache", len(entries), 0)
	}

	return c.jobs.SetStatus(ctx, job.ID(), jobstate.StatusCompleted)
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }
