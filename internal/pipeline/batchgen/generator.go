// Package batchgen implements C8, the batch thumbnail/cache generator:
// the core of the pipeline (spec §4.4). It groups incoming
// thumbnail.generation / cache.generation messages by collection, processes
// a bounded batch in memory, writes artifacts to disk in one sequential
// pass per collection, and commits metadata in one round trip per kind.
package batchgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/archive"
	"github.com/imagevault/pipeline/internal/infra/artifactstore"
	"github.com/imagevault/pipeline/internal/infra/imageprocessor"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

// bucket accumulates items for one collection until it flushes.
type bucket struct {
	items []item
	timer *time.Timer
}

// Generator buckets thumbnail.generation/cache.generation messages by
// collection id and flushes each bucket as one batch (spec §4.4's
// "concurrency model").
type Generator struct {
	collections collection.Repository
	jobs        *jobstate.Service
	processor   imageprocessor.ImageProcessor
	store       artifactstore.Store
	cfg         messagebus.Config

	mu      sync.Mutex
	buckets map[uuid.UUID]*bucket

	batchSem chan struct{}
	memSlots chan struct{}
}

// NewGenerator constructs a Generator. cfg supplies every batching/memory
// knob spec.md §6 names.
func NewGenerator(collections collection.Repository, jobs *jobstate.Service, processor imageprocessor.ImageProcessor, store artifactstore.Store, cfg messagebus.Config) *Generator {
	return &Generator{
		collections: collections,
		jobs:        jobs,
		processor:   processor,
		store:       store,
		cfg:         cfg,
		buckets:     make(map[uuid.UUID]*bucket),
		batchSem:    make(chan struct{}, cfg.MaxConcurrentBatches),
		memSlots:    make(chan struct{}, cfg.MemoryPoolSize),
	}
}

// ProcessThumbnailTask handles one thumbnail.generation message by pinning
// it to its collection bucket.
func (g *Generator) ProcessThumbnailTask(ctx context.Context, t *asynq.Task) error {
	var p messagebus.ThumbnailGenerationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal thumbnail.generation payload: %w", err)
	}
	g.enqueue(item{
		kind:          artifactstore.KindThumbnail,
		collectionID:  p.CollectionID,
		imageID:       p.ImageID,
		imagePath:     p.ImagePath,
		imageFilename: p.ImageFilename,
		width:         p.Width,
		height:        p.Height,
		jobID:         p.JobID,
		scanJobID:     p.ScanJobID,
	})
	return nil
}

// ProcessCacheTask handles one cache.generation message by pinning it to
// its collection bucket.
func (g *Generator) ProcessCacheTask(ctx context.Context, t *asynq.Task) error {
	var p messagebus.CacheGenerationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal cache.generation payload: %w", err)
	}
	g.enqueue(item{
		kind:             artifactstore.KindCache,
		collectionID:     p.CollectionID,
		imageID:          p.ImageID,
		imagePath:        p.ImagePath,
		width:            p.Width,
		height:           p.Height,
		format:           p.Format,
		quality:          p.Quality,
		preserveOriginal: p.PreserveOriginal,
		forceRegenerate:  p.ForceRegenerate,
		jobID:            p.JobID,
		scanJobID:        p.ScanJobID,
	})
	return nil
}

// enqueue pins it to its collection's bucket, flushing immediately if the
// bucket has reached MaxBatchSize, otherwise arming a BatchTimeoutSeconds
// timer on first insertion (spec §4.4).
func (g *Generator) enqueue(it item) {
	g.mu.Lock()
	b, ok := g.buckets[it.collectionID]
	if !ok {
		b = &bucket{}
		g.buckets[it.collectionID] = b
		collectionID := it.collectionID
		b.timer = time.AfterFunc(time.Duration(g.cfg.BatchTimeoutSeconds)*time.Second, func() {
			g.flushCollection(collectionID)
		})
	}
	b.items = append(b.items, it)
	shouldFlush := len(b.items) >= g.cfg.MaxBatchSize
	if shouldFlush {
		delete(g.buckets, it.collectionID)
		b.timer.Stop()
	}
	g.mu.Unlock()

	if shouldFlush {
		go g.runFlush(it.collectionID, b.items)
	}
}

// flushCollection is the timeout path: it fires from the bucket's own
// timer once its oldest item has aged past BatchTimeoutSeconds.
func (g *Generator) flushCollection(collectionID uuid.UUID) {
	g.mu.Lock()
	b, ok := g.buckets[collectionID]
	if ok {
		delete(g.buckets, collectionID)
	}
	g.mu.Unlock()
	if !ok || len(b.items) == 0 {
		return
	}
	go g.runFlush(collectionID, b.items)
}

// runFlush processes one collection's batch end to end: per-image
// generation (bounded by MaxConcurrentProcessing, gated by the memory
// pool), then the per-collection commit.
func (g *Generator) runFlush(collectionID uuid.UUID, items []item) {
	g.batchSem <- struct{}{}
	defer func() { <-g.batchSem }()

	ctx := context.Background()
	col, err := g.collections.FindByID(ctx, collectionID)
	if err != nil {
		log.Printf("batchgen: load collection %s: %v", collectionID, err)
		return
	}

	results := g.processItems(ctx, col, items)
	g.commit(ctx, col, results)
}

type itemResult struct {
	it         item
	out        outcome
	thumbEntry collection.ThumbnailEntry
	cacheEntry collection.CacheEntry
	data       []byte
}

// processItems runs the per-image pipeline for every item in the batch,
// fanned out across MaxConcurrentProcessing workers (grounded on the
// errgroup+semaphore pattern used for parallel derivative uploads in the
// image-pipeline example repo in the pack).
func (g *Generator) processItems(ctx context.Context, col *collection.Collection, items []item) []itemResult {
	results := make([]itemResult, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, g.cfg.MaxConcurrentProcessing)

	for i, it := range items {
		i, it := i, it
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				return nil
			}
			defer func() { <-sem }()
			results[i] = g.processItem(ctx, col, it)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (g *Generator) processItem(ctx context.Context, col *collection.Collection, it item) itemResult {
	img, ok := col.FindImage(it.imageID)
	if !ok {
		log.Printf("batchgen: image %s missing from collection %s", it.imageID, it.collectionID)
		return itemResult{it: it, out: outcomeFailed, thumbEntry: collection.SentinelThumbnail(it.imageID, it.width, it.height), cacheEntry: collection.SentinelCache(it.imageID)}
	}

	limit := g.cfg.MaxImageSizeBytes
	if col.Type() == collection.TypeArchive {
		limit = g.cfg.MaxZipEntrySizeBytes
	}
	if img.SizeBytes > limit {
		if g.jobs != nil && it.scanJobID != uuid.Nil {
			g.jobs.TrackError(ctx, it.scanJobID, "OversizeSource")
		}
		return g.sentinelResult(it, outcomeOversize)
	}

	if res, handled := g.checkExisting(ctx, col, it); handled {
		return res
	}

	if it.preserveOriginal && it.kind == artifactstore.KindCache {
		// preserveOriginal asks for a straight copy at full quality; still
		// goes through the normal generate path below with quality 100.
		it.quality = 100
	}

	data, err := g.generate(ctx, col, img, it)
	if err != nil {
		log.Printf("batchgen: generate %s for image %s: %v", it.kind, it.imageID, err)
		if g.jobs != nil && it.scanJobID != uuid.Nil {
			g.jobs.TrackError(ctx, it.scanJobID, "DecodeFailure")
		}
		return g.sentinelResult(it, outcomeFailed)
	}

	res := itemResult{it: it, out: outcomeGenerated, data: data}
	if it.kind == artifactstore.KindThumbnail {
		res.thumbEntry = collection.ThumbnailEntry{ImageID: it.imageID, Width: it.width, Height: it.height, Format: normalizeExt(it.ext()), SizeBytes: int64(len(data))}
	} else {
		res.cacheEntry = collection.CacheEntry{ImageID: it.imageID, Format: normalizeExt(it.ext()), Quality: it.quality, SizeBytes: int64(len(data))}
	}
	return res
}

func (g *Generator) sentinelResult(it item, out outcome) itemResult {
	return itemResult{
		it:         it,
		out:        out,
		thumbEntry: collection.SentinelThumbnail(it.imageID, it.width, it.height),
		cacheEntry: collection.SentinelCache(it.imageID),
	}
}

// checkExisting applies the idempotence rules of spec §4.4: a live,
// on-disk entry is left alone; a missing entry whose file still exists is
// re-registered without regenerating; a sentinel is left alone silently.
func (g *Generator) checkExisting(ctx context.Context, col *collection.Collection, it item) (itemResult, bool) {
	ext := it.ext()

	if it.kind == artifactstore.KindThumbnail {
		existing, ok := col.FindThumbnail(it.imageID, it.width, it.height)
		if ok {
			if existing.IsSentinel() {
				return itemResult{it: it, out: outcomeSkippedSentinel}, true
			}
			if exists, _ := g.store.Exists(ctx, artifactstore.KindThumbnail, it.collectionID, it.imageID, dotExt(existing.Format)); exists && !it.forceRegenerate {
				return itemResult{it: it, out: outcomeSkippedExisting}, true
			}
			return itemResult{}, false
		}
		if exists, size := g.statArtifact(ctx, artifactstore.KindThumbnail, it.collectionID, it.imageID, ext); exists && !it.forceRegenerate {
			return itemResult{it: it, out: outcomeReregistered, thumbEntry: collection.ThumbnailEntry{
				ImageID: it.imageID, Path: g.store.Path(artifactstore.KindThumbnail, it.collectionID, it.imageID, ext),
				Width: it.width, Height: it.height, Format: normalizeExt(ext), SizeBytes: size,
			}}, true
		}
		return itemResult{}, false
	}

	existing, ok := col.FindCacheEntry(it.imageID)
	if ok {
		if existing.IsSentinel() {
			return itemResult{it: it, out: outcomeSkippedSentinel}, true
		}
		if exists, _ := g.store.Exists(ctx, artifactstore.KindCache, it.collectionID, it.imageID, dotExt(existing.Format)); exists && !it.forceRegenerate {
			return itemResult{it: it, out: outcomeSkippedExisting}, true
		}
		return itemResult{}, false
	}
	if exists, size := g.statArtifact(ctx, artifactstore.KindCache, it.collectionID, it.imageID, ext); exists && !it.forceRegenerate {
		return itemResult{it: it, out: outcomeReregistered, cacheEntry: collection.CacheEntry{
			ImageID: it.imageID, Path: g.store.Path(artifactstore.KindCache, it.collectionID, it.imageID, ext),
			Format: normalizeExt(ext), Quality: it.quality, SizeBytes: size,
		}}, true
	}
	return itemResult{}, false
}

// statArtifact reports whether an artifact already exists on disk without
// a live database record (the re-register path). Store exposes no stat
// call, so the recovered size is left at 0; IncrementCacheFolderSize will
// undercount these until the file is regenerated, which self-heals on the
// next forceRegenerate pass.
func (g *Generator) statArtifact(ctx context.Context, kind artifactstore.Kind, collectionID, imageID uuid.UUID, ext string) (bool, int64) {
	exists, err := g.store.Exists(ctx, kind, collectionID, imageID, ext)
	if err != nil || !exists {
		return false, 0
	}
	return true, 0
}

// generate decodes, resizes and re-encodes one image in memory, acquiring
// a memory-pool slot for the duration (spec §4.4's memory pool / back
// pressure).
func (g *Generator) generate(ctx context.Context, col *collection.Collection, img collection.Image, it item) ([]byte, error) {
	srcPath, cleanup, err := sourceFilePath(col, img)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}
	defer cleanup()

	select {
	case g.memSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-g.memSlots }()

	quality := it.quality
	if it.kind == artifactstore.KindCache {
		quality = imageprocessor.EffectiveQuality(it.quality, img.Width, img.Height, it.width, it.height, img.SizeBytes)
	}

	return g.processor.GenerateVariantToBuffer(ctx, srcPath, it.ext(), it.width, it.height, quality)
}

// sourceFilePath resolves a readable on-disk path for an image, extracting
// archive members to a scratch temp file since the image processor decodes
// from a file path. The returned cleanup must always be called.
func sourceFilePath(col *collection.Collection, img collection.Image) (string, func(), error) {
	if col.Type() != collection.TypeArchive {
		return filepath.Join(col.Path(), img.RelativePath), func() {}, nil
	}

	r, err := archive.Open(col.Path())
	if err != nil {
		return "", nil, fmt.Errorf("open archive %s: %w", col.Path(), err)
	}
	defer r.Close()

	rc, err := r.Open(img.RelativePath)
	if err != nil {
		return "", nil, fmt.Errorf("open entry %s: %w", img.RelativePath, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "batchgen-src-*"+filepath.Ext(img.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("extract entry: %w", err)
	}
	tmp.Close()

	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// normalizeExt strips the leading dot from an item.ext()-style extension,
// since Format fields are stored without it.
func normalizeExt(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}

// dotExt restores the leading dot a stored Format needs for Store calls.
func dotExt(format string) string {
	return "." + format
}

// commit is the per-collection commit step: write every artifact
// sequentially, build the batch arrays, and push them in one round trip
// per kind (spec §4.4).
func (g *Generator) commit(ctx context.Context, col *collection.Collection, results []itemResult) {
	var thumbEntries []collection.ThumbnailEntry
	var cacheEntries []collection.CacheEntry
	var cacheBytesDelta int64

	stageCompleted := map[uuid.UUID]map[artifactstore.Kind]int{}
	stageFailed := map[uuid.UUID]map[artifactstore.Kind]int{}
	ranJobs := map[uuid.UUID]bool{}

	for _, res := range results {
		if res.it.imageID == uuid.Nil {
			continue // worker never ran (context cancelled mid-batch)
		}

		if res.it.kind == artifactstore.KindThumbnail {
			if res.out == outcomeGenerated {
				path, size, err := g.store.Save(ctx, artifactstore.KindThumbnail, res.it.collectionID, res.it.imageID, res.it.ext(), bytes.NewReader(res.data))
				if err != nil {
					log.Printf("batchgen: write thumbnail for image %s: %v", res.it.imageID, err)
					res.out = outcomeFailed
					res.thumbEntry = collection.SentinelThumbnail(res.it.imageID, res.it.width, res.it.height)
				} else {
					res.thumbEntry.Path = path
					res.thumbEntry.SizeBytes = size
				}
			}
			if res.out != outcomeSkippedExisting && res.out != outcomeSkippedSentinel {
				thumbEntries = append(thumbEntries, res.thumbEntry)
			}
		} else {
			if res.out == outcomeGenerated {
				path, size, err := g.store.Save(ctx, artifactstore.KindCache, res.it.collectionID, res.it.imageID, res.it.ext(), bytes.NewReader(res.data))
				if err != nil {
					log.Printf("batchgen: write cache for image %s: %v", res.it.imageID, err)
					res.out = outcomeFailed
					res.cacheEntry = collection.SentinelCache(res.it.imageID)
				} else {
					res.cacheEntry.Path = path
					res.cacheEntry.SizeBytes = size
					cacheBytesDelta += size
				}
			} else if res.out == outcomeReregistered {
				cacheBytesDelta += res.cacheEntry.SizeBytes
			}
			if res.out != outcomeSkippedExisting && res.out != outcomeSkippedSentinel {
				cacheEntries = append(cacheEntries, res.cacheEntry)
			}
		}

		if g.jobs != nil && res.it.jobID != uuid.Nil && !ranJobs[res.it.jobID] {
			ranJobs[res.it.jobID] = true
			if err := g.jobs.EnsureRunning(ctx, res.it.jobID); err != nil {
				log.Printf("batchgen: EnsureRunning job %s: %v", res.it.jobID, err)
			}
		}

		if res.it.scanJobID != uuid.Nil {
			if stageCompleted[res.it.scanJobID] == nil {
				stageCompleted[res.it.scanJobID] = map[artifactstore.Kind]int{}
				stageFailed[res.it.scanJobID] = map[artifactstore.Kind]int{}
			}
			if res.out.countsCompleted() {
				stageCompleted[res.it.scanJobID][res.it.kind]++
			} else if res.out.countsFailed() {
				stageFailed[res.it.scanJobID][res.it.kind]++
			}
		}
	}

	if len(thumbEntries) > 0 {
		if err := g.collections.AddThumbnailsBatch(ctx, col.ID(), thumbEntries); err != nil {
			log.Printf("batchgen: AddThumbnailsBatch collection %s: %v", col.ID(), err)
		}
	}
	if len(cacheEntries) > 0 {
		if err := g.collections.AddCacheImagesBatch(ctx, col.ID(), cacheEntries); err != nil {
			log.Printf("batchgen: AddCacheImagesBatch collection %s: %v", col.ID(), err)
		}
	}
	if cacheBytesDelta > 0 {
		if err := g.collections.IncrementCacheFolderSize(ctx, col.ID(), cacheBytesDelta); err != nil {
			log.Printf("batchgen: IncrementCacheFolderSize collection %s: %v", col.ID(), err)
		}
	}

	if g.jobs == nil {
		return
	}
	for scanJobID, byKind := range stageCompleted {
		for kind, completed := range byKind {
			g.jobs.IncrementStageProgress(ctx, scanJobID, string(kind), completed, stageFailed[scanJobID][kind])
		}
	}
	for scanJobID, byKind := range stageFailed {
		for kind, failed := range byKind {
			if stageCompleted[scanJobID][kind] == 0 && failed > 0 {
				g.jobs.IncrementStageProgress(ctx, scanJobID, string(kind), 0, failed)
			}
		}
	}
}
