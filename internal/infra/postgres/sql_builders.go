package postgres

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/domain/collection"
)

// buildThumbnailUpsert builds a single multi-row INSERT ... ON CONFLICT DO
// UPDATE statement covering every entry, so a collection's whole thumbnail
// batch commits in one round trip (spec §4.4 step 3).
func buildThumbnailUpsert(collectionID uuid.UUID, entries []collection.ThumbnailEntry) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO thumbnail_entries (collection_id, image_id, path, width, height, format, quality, size_bytes) VALUES `)

	args := make([]any, 0, len(entries)*8)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, collectionID, e.ImageID, e.Path, e.Width, e.Height, e.Format, e.Quality, e.SizeBytes)
	}

	b.WriteString(` ON CONFLICT (collection_id, image_id, width, height) DO UPDATE SET
		path = EXCLUDED.path,
		format = EXCLUDED.format,
		quality = EXCLUDED.quality,
		size_bytes = EXCLUDED.size_bytes`)

	return b.String(), args
}

// buildCacheUpsert is the same shape as buildThumbnailUpsert, keyed on
// (collection_id, image_id) since at most one cache entry exists per image.
func buildCacheUpsert(collectionID uuid.UUID, entries []collection.CacheEntry) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO cache_entries (collection_id, image_id, path, format, quality, size_bytes) VALUES `)

	args := make([]any, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, collectionID, e.ImageID, e.Path, e.Format, e.Quality, e.SizeBytes)
	}

	b.WriteString(` ON CONFLICT (collection_id, image_id) DO UPDATE SET
		path = EXCLUDED.path,
		format = EXCLUDED.format,
		quality = EXCLUDED.quality,
		size_bytes = EXCLUDED.size_bytes`)

	return b.String(), args
}
