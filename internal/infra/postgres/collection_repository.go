package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagevault/pipeline/internal/domain/collection"
)

// CollectionRepository persists the Collection aggregate across four
// tables: collections, images, thumbnail_entries, cache_entries. Settings
// are stored as JSONB (spec.md §4 mapping); every array-mutating method is
// a single round trip per spec §4.4, grounded on importjob_repository.go's
// hand-written pgx style (no sqlc layer).
type CollectionRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

// NewCollectionRepository constructs a CollectionRepository over pool.
func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool, tx: NewTxManager(pool)}
}

func (r *CollectionRepository) Save(ctx context.Context, c *collection.Collection) error {
	settingsJSON, err := json.Marshal(c.Settings())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	db := GetDBTX(ctx, r.pool)
	_, err = db.Exec(ctx, `
		INSERT INTO collections (id, name, path, collection_type, settings, cache_folder_size_bytes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			collection_type = EXCLUDED.collection_type,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`, c.ID(), c.Name(), c.Path(), c.Type(), settingsJSON, c.CacheFolderSizeBytes(), c.CreatedAt(), c.UpdatedAt())
	return err
}

func (r *CollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*collection.Collection, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		SELECT id, name, path, collection_type, settings, cache_folder_size_bytes, created_at, updated_at
		FROM collections WHERE id = $1
	`, id)
	return r.scanAndLoad(ctx, row)
}

func (r *CollectionRepository) FindByPath(ctx context.Context, path string) (*collection.Collection, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		SELECT id, name, path, collection_type, settings, cache_folder_size_bytes, created_at, updated_at
		FROM collections WHERE path = $1
	`, path)
	return r.scanAndLoad(ctx, row)
}

func (r *CollectionRepository) scanAndLoad(ctx context.Context, row pgx.Row) (*collection.Collection, error) {
	c, err := r.scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, collection.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CollectionRepository) scanCollection(row pgx.Row) (*collection.Collection, error) {
	var (
		id                   uuid.UUID
		name, path           string
		collectionType       collection.Type
		settingsJSON         []byte
		cacheFolderSizeBytes int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &path, &collectionType, &settingsJSON, &cacheFolderSizeBytes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var settings collection.Settings
	if err := json.Unmarshal(settingsJSON, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return collection.ReconstructCollection(
		id, name, path, collectionType, settings, cacheFolderSizeBytes,
		nil, nil, nil, createdAt, updatedAt,
	), nil
}

func (r *CollectionRepository) loadChildren(ctx context.Context, c *collection.Collection) error {
	db := GetDBTX(ctx, r.pool)

	imgRows, err := db.Query(ctx, `
		SELECT id, collection_id, filename, relative_path, size_bytes, width, height, format, created_at
		FROM images WHERE collection_id = $1
	`, c.ID())
	if err != nil {
		return err
	}
	var images []collection.Image
	for imgRows.Next() {
		var img collection.Image
		if err := imgRows.Scan(&img.ID, &img.CollectionID, &img.Filename, &img.RelativePath,
			&img.SizeBytes, &img.Width, &img.Height, &img.Format, &img.CreatedAt); err != nil {
			imgRows.Close()
			return err
		}
		images = append(images, img)
	}
	imgRows.Close()
	if err := imgRows.Err(); err != nil {
		return err
	}

	thumbRows, err := db.Query(ctx, `
		SELECT image_id, path, width, height, format, quality, size_bytes
		FROM thumbnail_entries WHERE collection_id = $1
	`, c.ID())
	if err != nil {
		return err
	}
	var thumbs []collection.ThumbnailEntry
	for thumbRows.Next() {
		var t collection.ThumbnailEntry
		if err := thumbRows.Scan(&t.ImageID, &t.Path, &t.Width, &t.Height, &t.Format, &t.Quality, &t.SizeBytes); err != nil {
			thumbRows.Close()
			return err
		}
		thumbs = append(thumbs, t)
	}
	thumbRows.Close()
	if err := thumbRows.Err(); err != nil {
		return err
	}

	cacheRows, err := db.Query(ctx, `
		SELECT image_id, path, format, quality, size_bytes
		FROM cache_entries WHERE collection_id = $1
	`, c.ID())
	if err != nil {
		return err
	}
	var caches []collection.CacheEntry
	for cacheRows.Next() {
		var ce collection.CacheEntry
		if err := cacheRows.Scan(&ce.ImageID, &ce.Path, &ce.Format, &ce.Quality, &ce.SizeBytes); err != nil {
			cacheRows.Close()
			return err
		}
		caches = append(caches, ce)
	}
	cacheRows.Close()
	if err := cacheRows.Err(); err != nil {
		return err
	}

	*c = *collection.ReconstructCollection(
		c.ID(), c.Name(), c.Path(), c.Type(), c.Settings(), c.CacheFolderSizeBytes(),
		images, thumbs, caches, c.CreatedAt(), c.UpdatedAt(),
	)
	return nil
}

// Delete removes a collection and its three array tables' rows in one
// transaction (spec.md §3's delete-collection invariant, generalized to
// collection.Service.Delete's caller).
func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.tx.WithTx(ctx, func(txCtx context.Context) error {
		db := GetDBTX(txCtx, r.pool)
		for _, table := range []string{"thumbnail_entries", "cache_entries", "images"} {
			if _, err := db.Exec(txCtx, fmt.Sprintf(`DELETE FROM %s WHERE collection_id = $1`, table), id); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		if _, err := db.Exec(txCtx, `DELETE FROM collections WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete from collections: %w", err)
		}
		return nil
	})
}

// UpsertSettings never touches images/thumbnails/cache_entries, preserving
// the disjointness invariant collection.Collection.UpdateSettings documents.
func (r *CollectionRepository) UpsertSettings(ctx context.Context, id uuid.UUID, s collection.Settings) error {
	settingsJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	db := GetDBTX(ctx, r.pool)
	_, err = db.Exec(ctx, `
		UPDATE collections SET settings = $2, updated_at = now() WHERE id = $1
	`, id, settingsJSON)
	return err
}

// AddImage is an idempotent push: a duplicate (collection_id, id) is a
// silent no-op, reported back as added=false (spec §8 testable property 6).
func (r *CollectionRepository) AddImage(ctx context.Context, collectionID uuid.UUID, img collection.Image) (bool, error) {
	db := GetDBTX(ctx, r.pool)
	tag, err := db.Exec(ctx, `
		INSERT INTO images (id, collection_id, filename, relative_path, size_bytes, width, height, format, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (collection_id, id) DO NOTHING
	`, img.ID, collectionID, img.Filename, img.RelativePath, img.SizeBytes, img.Width, img.Height, img.Format, img.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateImageMetadata records the format/dimensions/size the image-processing
// consumer determines by decoding the source once (spec §4.3); collection-scan
// pushes the row first with dimensions unknown, since a directory/archive walk
// never decodes pixel data.
func (r *CollectionRepository) UpdateImageMetadata(ctx context.Context, collectionID, imageID uuid.UUID, sizeBytes int64, width, height int, format string) error {
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, `
		UPDATE images SET size_bytes = $3, width = $4, height = $5, format = $6
		WHERE collection_id = $1 AND id = $2
	`, collectionID, imageID, sizeBytes, width, height, format)
	return err
}

// AddThumbnailsBatch writes every entry in one multi-row INSERT so a
// collection's full batch commits in a single round trip (spec §4.4 step 3).
// Re-registration of the same (collection_id, image_id, width, height)
// overwrites.
func (r *CollectionRepository) AddThumbnailsBatch(ctx context.Context, collectionID uuid.UUID, entries []collection.ThumbnailEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query, args := buildThumbnailUpsert(collectionID, entries)
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, query, args...)
	return err
}

// AddCacheImagesBatch writes every entry in one multi-row INSERT, at most
// one cache entry per image; re-registration overwrites.
func (r *CollectionRepository) AddCacheImagesBatch(ctx context.Context, collectionID uuid.UUID, entries []collection.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query, args := buildCacheUpsert(collectionID, entries)
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, query, args...)
	return err
}

func (r *CollectionRepository) IncrementCacheFolderSize(ctx context.Context, collectionID uuid.UUID, deltaBytes int64) error {
	db := GetDBTX(ctx, r.pool)
	_, err := db.Exec(ctx, `
		UPDATE collections SET cache_folder_size_bytes = cache_folder_size_bytes + $2, updated_at = now()
		WHERE id = $1
	`, collectionID, deltaBytes)
	return err
}
