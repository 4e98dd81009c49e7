// Package collection holds the Collection aggregate: a unit of images
// (one directory or one archive file) together with its derived
// thumbnail and cache artifacts.
package collection

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/shared"
)

// Type distinguishes a filesystem directory collection from an archive-file collection.
type Type string

const (
	TypeFolder  Type = "folder"
	TypeArchive Type = "archive"
)

// ArchiveEntrySeparator is the canonical separator between an archive's
// absolute path and an entry's relative path within it.
const ArchiveEntrySeparator = "#"

// Settings holds per-collection generation options.
type Settings struct {
	GenerateThumbnails  bool
	GenerateCache       bool
	UseDirectFileAccess bool
	ThumbnailWidth      int
	ThumbnailHeight     int
	CacheWidth          int
	CacheHeight         int
	CacheFormat         string
	CacheQuality        int
}

// Collection is the aggregate root: identity, path, settings, and the
// three embedded arrays of images/thumbnails/cache entries.
type Collection struct {
	id                   uuid.UUID
	name                 string
	path                 string
	collectionType       Type
	settings             Settings
	cacheFolderSizeBytes int64
	images               []Image
	thumbnails           []ThumbnailEntry
	cacheImages          []CacheEntry
	createdAt            time.Time
	updatedAt            time.Time
}

// NewCollection creates a freshly scanned collection with no images yet.
func NewCollection(name, path string, collectionType Type, settings Settings) (*Collection, error) {
	if name == "" {
		return nil, shared.NewFieldError(shared.ErrInvalidInput, "name", "name is required")
	}
	if path == "" {
		return nil, shared.NewFieldError(shared.ErrInvalidInput, "path", "path is required")
	}
	if collectionType != TypeFolder && collectionType != TypeArchive {
		return nil, shared.NewFieldError(shared.ErrInvalidInput, "type", "type must be folder or archive")
	}
	now := time.Now()
	return &Collection{
		id:             shared.NewUUID(),
		name:           name,
		path:           path,
		collectionType: collectionType,
		settings:       settings,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructCollection rebuilds a Collection from persisted state.
func ReconstructCollection(
	id uuid.UUID,
	name, path string,
	collectionType Type,
	settings Settings,
	cacheFolderSizeBytes int64,
	images []Image,
	thumbnails []ThumbnailEntry,
	cacheImages []CacheEntry,
	createdAt, updatedAt time.Time,
) *Collection {
	return &Collection{
		id:                   id,
		name:                 name,
		path:                 path,
		collectionType:       collectionType,
		settings:             settings,
		cacheFolderSizeBytes: cacheFolderSizeBytes,
		images:               images,
		thumbnails:           thumbnails,
		cacheImages:          cacheImages,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

// Getters
func (c *Collection) ID() uuid.UUID                 { return c.id }
func (c *Collection) Name() string                  { return c.name }
func (c *Collection) Path() string                  { return c.path }
func (c *Collection) Type() Type                    { return c.collectionType }
func (c *Collection) Settings() Settings             { return c.settings }
func (c *Collection) CacheFolderSizeBytes() int64    { return c.cacheFolderSizeBytes }
func (c *Collection) Images() []Image                { return c.images }
func (c *Collection) Thumbnails() []ThumbnailEntry   { return c.thumbnails }
func (c *Collection) CacheImages() []CacheEntry      { return c.cacheImages }
func (c *Collection) CreatedAt() time.Time           { return c.createdAt }
func (c *Collection) UpdatedAt() time.Time           { return c.updatedAt }

// UpdateSettings replaces the collection's settings in place. It never
// touches the embedded arrays — settings updates and array mutations are
// disjoint operations so UseDirectFileAccess always reads from the same
// column every caller sees.
func (c *Collection) UpdateSettings(s Settings) {
	c.settings = s
	c.updatedAt = time.Now()
}

// FindImage returns the image with the given id, if present.
func (c *Collection) FindImage(imageID uuid.UUID) (Image, bool) {
	for _, img := range c.images {
		if img.ID == imageID {
			return img, true
		}
	}
	return Image{}, false
}

// HasImage reports whether an image with the given id is already present
// (used by collection-scan to decide whether to push a new image record).
func (c *Collection) HasImage(imageID uuid.UUID) bool {
	_, ok := c.FindImage(imageID)
	return ok
}

// FindThumbnail returns the thumbnail entry for (imageID, width, height), if any.
func (c *Collection) FindThumbnail(imageID uuid.UUID, width, height int) (ThumbnailEntry, bool) {
	for _, t := range c.thumbnails {
		if t.ImageID == imageID && t.Width == width && t.Height == height {
			return t, true
		}
	}
	return ThumbnailEntry{}, false
}

// FindCacheEntry returns the cache entry for imageID, if any.
func (c *Collection) FindCacheEntry(imageID uuid.UUID) (CacheEntry, bool) {
	for _, ce := range c.cacheImages {
		if ce.ImageID == imageID {
			return ce, true
		}
	}
	return CacheEntry{}, false
}

// ImagesMissingThumbnail returns every image with no thumbnail entry at all
// (any width/height), used by the resume coordinator (spec §4.5).
func (c *Collection) ImagesMissingThumbnail() []Image {
	var out []Image
	for _, img := range c.images {
		found := false
		for _, t := range c.thumbnails {
			if t.ImageID == img.ID {
				found = true
				break
			}
		}
		if !found {
			out = append(out, img)
		}
	}
	return out
}

// ImagesMissingCache returns every image with no cache entry.
func (c *Collection) ImagesMissingCache() []Image {
	var out []Image
	for _, img := range c.images {
		if _, ok := c.FindCacheEntry(img.ID); !ok {
			out = append(out, img)
		}
	}
	return out
}

// Validate checks the aggregate's structural invariants (spec §3):
// every thumbnail/cache entry references an existing image, and keys
// are unique within their kind.
func (c *Collection) Validate() error {
	imageIDs := make(map[uuid.UUID]bool, len(c.images))
	for _, img := range c.images {
		imageIDs[img.ID] = true
	}

	seenThumb := make(map[string]bool, len(c.thumbnails))
	for _, t := range c.thumbnails {
		if !imageIDs[t.ImageID] {
			return fmt.Errorf("thumbnail entry references unknown image %s", t.ImageID)
		}
		key := fmt.Sprintf("%s|%d|%d", t.ImageID, t.Width, t.Height)
		if seenThumb[key] {
			return fmt.Errorf("duplicate thumbnail entry for image %s at %dx%d", t.ImageID, t.Width, t.Height)
		}
		seenThumb[key] = true
	}

	seenCache := make(map[uuid.UUID]bool, len(c.cacheImages))
	for _, ce := range c.cacheImages {
		if !imageIDs[ce.ImageID] {
			return fmt.Errorf("cache entry references unknown image %s", ce.ImageID)
		}
		if seenCache[ce.ImageID] {
			return fmt.Errorf("duplicate cache entry for image %s", ce.ImageID)
		}
		seenCache[ce.ImageID] = true
	}

	return nil
}

// Image is a collection-scoped image record.
type Image struct {
	ID           uuid.UUID
	CollectionID uuid.UUID
	Filename     string
	RelativePath string
	SizeBytes    int64
	Width        int
	Height       int
	Format       string
	CreatedAt    time.Time
}

// NewImage constructs an Image record for a newly discovered file.
func NewImage(collectionID uuid.UUID, filename, relativePath string, sizeBytes int64, width, height int, format string) Image {
	return Image{
		ID:           shared.NewUUID(),
		CollectionID: collectionID,
		Filename:     filename,
		RelativePath: relativePath,
		SizeBytes:    sizeBytes,
		Width:        width,
		Height:       height,
		Format:       format,
		CreatedAt:    time.Now(),
	}
}

// FullPath resolves the image's full-path per spec §3: a plain filesystem
// join for folder collections, or the canonical "<archive-path>#<entry-path>"
// composite for archive collections.
func (img Image) FullPath(c *Collection) string {
	if c.Type() == TypeArchive {
		return c.Path() + ArchiveEntrySeparator + NormalizeEntryPath(img.RelativePath)
	}
	return filepath.Join(c.Path(), img.RelativePath)
}

// NormalizeEntryPath converts any backslash-separated archive entry path to
// the canonical forward-slash form (spec §6).
func NormalizeEntryPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// NormalizeArchivePath ensures a composite path uses the canonical "#"
// separator and forward slashes in the entry portion, per spec §4.5 step 4.
// A path with no "#" is assumed to already be a plain (non-archive) path
// and is returned unchanged.
func NormalizeArchivePath(p string) string {
	sepIdx := strings.Index(p, ArchiveEntrySeparator)
	if sepIdx < 0 {
		return p
	}
	return p[:sepIdx] + ArchiveEntrySeparator + NormalizeEntryPath(p[sepIdx+1:])
}

// ThumbnailEntry is a small fixed-dimension derived render of one image.
type ThumbnailEntry struct {
	ImageID   uuid.UUID
	Path      string
	Width     int
	Height    int
	Format    string
	Quality   int
	SizeBytes int64
}

// IsSentinel reports whether this entry marks a prior permanent failure
// (empty path, zero size) rather than a real artifact (spec Glossary).
func (t ThumbnailEntry) IsSentinel() bool {
	return t.Path == "" && t.SizeBytes == 0
}

// SentinelThumbnail builds a sentinel entry for a permanently failed image.
func SentinelThumbnail(imageID uuid.UUID, width, height int) ThumbnailEntry {
	return ThumbnailEntry{ImageID: imageID, Width: width, Height: height}
}

// CacheEntry is a medium-resolution render of one image, at most one per image.
type CacheEntry struct {
	ImageID   uuid.UUID
	Path      string
	Format    string
	Quality   int
	SizeBytes int64
}

// IsSentinel reports whether this entry marks a prior permanent failure.
func (c CacheEntry) IsSentinel() bool {
	return c.Path == "" && c.SizeBytes == 0
}

// SentinelCache builds a sentinel cache entry for a permanently failed image.
func SentinelCache(imageID uuid.UUID) CacheEntry {
	return CacheEntry{ImageID: imageID}
}
