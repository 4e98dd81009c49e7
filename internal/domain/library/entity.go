// Package library holds the minimal Library value object: an external
// input this core reads but never mutates (spec §3).
package library

import (
	"context"

	"github.com/google/uuid"

	"github.com/imagevault/pipeline/internal/shared"
)

// Library is a configured root path the library-scan consumer walks.
type Library struct {
	ID        uuid.UUID
	RootPath  string
	AutoScan  bool
}

// NewLibrary constructs a Library value.
func NewLibrary(id uuid.UUID, rootPath string, autoScan bool) (Library, error) {
	if err := shared.ValidateUUID(id, "id"); err != nil {
		return Library{}, err
	}
	if rootPath == "" {
		return Library{}, shared.NewFieldError(shared.ErrInvalidInput, "root_path", "root path is required")
	}
	return Library{ID: id, RootPath: rootPath, AutoScan: autoScan}, nil
}

// Registry reads library configuration. This core treats libraries as
// immutable external input (spec §3); there is no Save/Delete here.
type Registry interface {
	FindByID(ctx context.Context, id uuid.UUID) (Library, error)
	ListAutoScan(ctx context.Context) ([]Library, error)
}
