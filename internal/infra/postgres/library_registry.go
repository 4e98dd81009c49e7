package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagevault/pipeline/internal/domain/library"
)

// LibraryRegistry reads library configuration rows. Libraries are treated
// as external, operator-managed input (spec §3) — this type has no
// Save/Delete, matching domain/library.Registry's read-only interface.
type LibraryRegistry struct {
	pool *pgxpool.Pool
}

// NewLibraryRegistry constructs a LibraryRegistry over pool.
func NewLibraryRegistry(pool *pgxpool.Pool) *LibraryRegistry {
	return &LibraryRegistry{pool: pool}
}

func (r *LibraryRegistry) FindByID(ctx context.Context, id uuid.UUID) (library.Library, error) {
	var lib library.Library
	err := r.pool.QueryRow(ctx, `SELECT id, root_path, auto_scan FROM libraries WHERE id = $1`, id).
		Scan(&lib.ID, &lib.RootPath, &lib.AutoScan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return library.Library{}, errors.New("library not found")
		}
		return library.Library{}, err
	}
	return lib, nil
}

func (r *LibraryRegistry) ListAutoScan(ctx context.Context) ([]library.Library, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, root_path, auto_scan FROM libraries WHERE auto_scan = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []library.Library
	for rows.Next() {
		var lib library.Library
		if err := rows.Scan(&lib.ID, &lib.RootPath, &lib.AutoScan); err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}
