package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	// ErrArtifactNotFound is returned when an artifact doesn't exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidExtension is returned when an extension contains unsafe characters.
	ErrInvalidExtension = errors.New("invalid artifact extension")
)

// Kind selects which artifact tree a path belongs to: thumbnails or cached
// render variants. Each lives under its own top-level directory.
type Kind string

const (
	KindThumbnail Kind = "thumbnails"
	KindCache     Kind = "cache"
)

// Store persists generated thumbnail and cache variants on disk, laid out
// as <root>/{thumbnails|cache}/<collectionId>/<imageId>.<ext>. The
// <collectionId>/ directory is created on demand per batch.
type Store interface {
	// Save writes reader's contents under kind/collectionID/imageID.ext and
	// returns the path relative to the store root plus the written size.
	Save(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string, reader io.Reader) (path string, sizeBytes int64, err error)

	// Exists reports whether an artifact is already present, used by resume
	// to distinguish orphan files from missing ones without reading them.
	Exists(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string) (bool, error)

	// Delete removes a single artifact. Deleting a missing artifact is not
	// an error.
	Delete(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string) error

	// DeleteCollection removes every artifact of the given kind for a
	// collection in one call, used by the collection-delete flow.
	DeleteCollection(ctx context.Context, kind Kind, collectionID uuid.UUID) error

	// Path returns the path Save would produce, without touching disk.
	Path(kind Kind, collectionID, imageID uuid.UUID, ext string) string
}

// LocalStore implements Store on the local filesystem, grounded on
// infra/storage/local_storage.go's atomic temp-file-then-rename write and
// path-containment checks.
type LocalStore struct {
	rootPath string
}

// NewLocalStore creates a LocalStore rooted at rootPath, creating it and
// verifying it is writable.
func NewLocalStore(rootPath string) (*LocalStore, error) {
	if rootPath == "" {
		return nil, errors.New("artifact root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}

	probe := filepath.Join(rootPath, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return nil, fmt.Errorf("artifact root is not writable: %w", err)
	}
	os.Remove(probe)

	return &LocalStore{rootPath: rootPath}, nil
}

func (s *LocalStore) Path(kind Kind, collectionID, imageID uuid.UUID, ext string) string {
	return filepath.Join(string(kind), collectionID.String(), imageID.String()+ext)
}

func (s *LocalStore) fullPath(kind Kind, collectionID, imageID uuid.UUID, ext string) (string, error) {
	if err := validateExtension(ext); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, s.Path(kind, collectionID, imageID, ext)), nil
}

func (s *LocalStore) Save(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string, reader io.Reader) (string, int64, error) {
	fullPath, err := s.fullPath(kind, collectionID, imageID, ext)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create collection directory: %w", err)
	}

	tempFile := fullPath + ".tmp"
	f, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, copyErr := io.Copy(f, reader)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to write artifact: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	if err := os.Rename(tempFile, fullPath); err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	return s.Path(kind, collectionID, imageID, ext), written, nil
}

func (s *LocalStore) Exists(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string) (bool, error) {
	fullPath, err := s.fullPath(kind, collectionID, imageID, ext)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Delete(ctx context.Context, kind Kind, collectionID, imageID uuid.UUID, ext string) error {
	fullPath, err := s.fullPath(kind, collectionID, imageID, ext)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func (s *LocalStore) DeleteCollection(ctx context.Context, kind Kind, collectionID uuid.UUID) error {
	dir := filepath.Join(s.rootPath, string(kind), collectionID.String())
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete collection artifacts: %w", err)
	}
	return nil
}

func validateExtension(ext string) error {
	if ext == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExtension)
	}
	if filepath.Base(ext) != ext || ext[0] != '.' {
		return fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}
	return nil
}
