// Package pipelinetest holds shared test doubles for the pipeline
// consumer packages, following the teacher's testutil convention of
// centralizing mocks rather than redefining them per test file.
package pipelinetest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/imagevault/pipeline/internal/domain/collection"
)

// MockCollectionRepository implements collection.Repository for testing.
type MockCollectionRepository struct {
	mock.Mock
}

func (m *MockCollectionRepository) Save(ctx context.Context, c *collection.Collection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*collection.Collection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collection.Collection), args.Error(1)
}

func (m *MockCollectionRepository) FindByPath(ctx context.Context, path string) (*collection.Collection, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collection.Collection), args.Error(1)
}

func (m *MockCollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCollectionRepository) UpsertSettings(ctx context.Context, id uuid.UUID, s collection.Settings) error {
	args := m.Called(ctx, id, s)
	return args.Error(0)
}

func (m *MockCollectionRepository) AddImage(ctx context.Context, collectionID uuid.UUID, img collection.Image) (bool, error) {
	args := m.Called(ctx, collectionID, img)
	return args.Bool(0), args.Error(1)
}

func (m *MockCollectionRepository) UpdateImageMetadata(ctx context.Context, collectionID, imageID uuid.UUID, sizeBytes int64, width, height int, format string) error {
	args := m.Called(ctx, collectionID, imageID, sizeBytes, width, height, format)
	return args.Error(0)
}

func (m *MockCollectionRepository) AddThumbnailsBatch(ctx context.Context, collectionID uuid.UUID, entries []collection.ThumbnailEntry) error {
	args := m.Called(ctx, collectionID, entries)
	return args.Error(0)
}

func (m *MockCollectionRepository) AddCacheImagesBatch(ctx context.Context, collectionID uuid.UUID, entries []collection.CacheEntry) error {
	args := m.Called(ctx, collectionID, entries)
	return args.Error(0)
}

func (m *MockCollectionRepository) IncrementCacheFolderSize(ctx context.Context, collectionID uuid.UUID, deltaBytes int64) error {
	args := m.Called(ctx, collectionID, deltaBytes)
	return args.Error(0)
}
