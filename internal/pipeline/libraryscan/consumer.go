// Package libraryscan implements C5: walking a library root and emitting
// one collection-scan message per directory/archive found (spec §4.2).
package libraryscan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/infra/archive"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// DefaultSettings is applied to newly discovered collections that have no
// prior settings row (spec §3: generate-thumbnails, generate-cache, etc.).
var DefaultSettings = collection.Settings{
	GenerateThumbnails: true,
	GenerateCache:      true,
	ThumbnailWidth:     300,
	ThumbnailHeight:    300,
	CacheWidth:         1920,
	CacheHeight:        1080,
	CacheFormat:        "jpeg",
	CacheQuality:       85,
}

// Consumer handles library.scan messages.
type Consumer struct {
	collections collection.Repository
	client      messagebus.Enqueuer
}

// NewConsumer constructs a library-scan Consumer.
func NewConsumer(collections collection.Repository, client messagebus.Enqueuer) *Consumer {
	return &Consumer{collections: collections, client: client}
}

// ProcessTask handles one library.scan task (spec §4.2).
func (c *Consumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload messagebus.LibraryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal library.scan payload: %w", err)
	}

	entries, err := os.ReadDir(payload.LibraryPath)
	if err != nil {
		return fmt.Errorf("read library root %s: %w", payload.LibraryPath, err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}

	published := 0
	for _, name := range names {
		e := byName[name]
		fullPath := filepath.Join(payload.LibraryPath, name)

		colType, ok := classify(fullPath, e)
		if !ok {
			continue
		}

		col, err := c.upsertCollection(ctx, name, fullPath, colType)
		if err != nil {
			log.Printf("libraryscan: upsert collection %s: %v", fullPath, err)
			continue
		}

		scanPayload := messagebus.CollectionScanPayload{
			CollectionID:   col.ID(),
			CollectionPath: fullPath,
			ScanJobID:      payload.ScanJobID,
		}
		task, err := messagebus.NewCollectionScanTask(scanPayload)
		if err != nil {
			log.Printf("libraryscan: build collection.scan task for %s: %v", fullPath, err)
			continue
		}
		if _, err := c.client.EnqueueContext(ctx, task); err != nil {
			log.Printf("libraryscan: enqueue collection.scan for %s: %v", fullPath, err)
			continue
		}
		published++
	}

	log.Printf("libraryscan: library %s discovered %d collections", payload.LibraryID, published)
	return nil
}

// classify reports whether path looks like a collection (a directory
// containing at least one image file, or a recognized archive file) and,
// if so, its Type (spec §4.2).
func classify(path string, e os.DirEntry) (collection.Type, bool) {
	if e.IsDir() {
		if containsImage(path) {
			return collection.TypeFolder, true
		}
		return "", false
	}
	if archive.DetectFormat(path) != archive.FormatUnknown {
		return collection.TypeArchive, true
	}
	return "", false
}

func containsImage(dirPath string) bool {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			return true
		}
	}
	return false
}

// upsertCollection creates the collection if absent, applying
// DefaultSettings; leaves settings untouched if the collection already
// exists (spec §4.2: "updating settings if present" means the existing
// settings are authoritative, re-scan must not clobber operator changes).
func (c *Consumer) upsertCollection(ctx context.Context, name, path string, colType collection.Type) (*collection.Collection, error) {
	existing, err := c.collections.FindByPath(ctx, path)
	if err == nil {
		return existing, nil
	}

	col, err := collection.NewCollection(name, path, colType, DefaultSettings)
	if err != nil {
		return nil, err
	}
	if err := c.collections.Save(ctx, col); err != nil {
		return nil, fmt.Errorf("save new collection: %w", err)
	}
	return col, nil
}
