package messagebus

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThumbnailGenerationTask(t *testing.T) {
	p := ThumbnailGenerationPayload{
		CollectionID:  uuid.New(),
		ImageID:       uuid.New(),
		ImagePath:     "/libs/vacation.zip#photo01.jpg",
		ImageFilename: "photo01.jpg",
		Width:         300,
		Height:        300,
		JobID:         uuid.New(),
		ScanJobID:     uuid.New(),
	}

	task, err := NewThumbnailGenerationTask(p)
	require.NoError(t, err)
	assert.Equal(t, TypeThumbnailGeneration, task.Type())

	var decoded ThumbnailGenerationPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, p, decoded)
}

func TestNewCacheGenerationTask(t *testing.T) {
	p := CacheGenerationPayload{
		CollectionID: uuid.New(),
		ImageID:      uuid.New(),
		ImagePath:    "/libs/vacation.zip#photo01.jpg",
		Width:        1920,
		Height:       1080,
		Format:       "jpeg",
		Quality:      85,
		JobID:        uuid.New(),
		ScanJobID:    uuid.New(),
	}

	task, err := NewCacheGenerationTask(p)
	require.NoError(t, err)
	assert.Equal(t, TypeCacheGeneration, task.Type())
}

func TestNewLibraryScanTask(t *testing.T) {
	p := LibraryScanPayload{
		LibraryID:   uuid.New(),
		LibraryPath: "/libs",
		ScanJobID:   uuid.New(),
	}

	task, err := NewLibraryScanTask(p)
	require.NoError(t, err)
	assert.Equal(t, TypeLibraryScan, task.Type())
}

func TestNewBulkOperationTask(t *testing.T) {
	p := BulkOperationPayload{
		OpType:     "collection.delete",
		Parameters: map[string]any{"collection_id": uuid.New().String()},
	}

	task, err := NewBulkOperationTask(p)
	require.NoError(t, err)
	assert.Equal(t, TypeBulkOperation, task.Type())
}
