package resume

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipelinetest"
)

func TestCoordinator_Resume_PublishesOnlyMissingVariants(t *testing.T) {
	img := collection.NewImage(uuid.New(), "a.jpg", "a.jpg", 1024, 800, 600, "jpeg")
	caches := []collection.CacheEntry{{ImageID: img.ID, Path: "cache/x.jpg", SizeBytes: 10}}
	col := collection.ReconstructCollection(uuid.New(), "test", "/library/test", collection.TypeFolder, collection.Settings{}, 0,
		[]collection.Image{img}, nil, caches, time.Now(), time.Now())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)

	jobsRepo := new(pipelinetest.MockJobStateRepository)
	jobsRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	jobsRepo.On("InitStage", mock.Anything, mock.Anything, "thumbnail", 1).Return(nil)
	jobsRepo.On("InitStage", mock.Anything, mock.Anything, "cache", 0).Return(nil)

	enq := &pipelinetest.FakeEnqueuer{}
	jobs := jobstate.NewService(jobsRepo)
	coord := NewCoordinator(repo, jobs, enq)

	require.NoError(t, coord.Resume(context.Background(), col.ID()))

	tasks := enq.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, messagebus.TypeThumbnailGeneration, tasks[0].Type())

	var p messagebus.ThumbnailGenerationPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload(), &p))
	assert.Equal(t, 300, p.Width)
}

func TestCoordinator_Resume_NothingMissingIsNoop(t *testing.T) {
	img := collection.NewImage(uuid.New(), "a.jpg", "a.jpg", 1024, 800, 600, "jpeg")
	col := collection.ReconstructCollection(uuid.New(), "test", "/library/test", collection.TypeFolder, collection.Settings{}, 0,
		[]collection.Image{img},
		[]collection.ThumbnailEntry{{ImageID: img.ID, Path: "t.jpg", Width: 300, Height: 300, SizeBytes: 5}},
		[]collection.CacheEntry{{ImageID: img.ID, Path: "c.jpg", SizeBytes: 5}},
		time.Now(), time.Now())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)

	enq := &pipelinetest.FakeEnqueuer{}
	coord := NewCoordinator(repo, nil, enq)

	require.NoError(t, coord.Resume(context.Background(), col.ID()))
	assert.Empty(t, enq.Tasks())
}

func TestCoordinator_Resume_DirectFileAccessWritesReferencesWithoutQueuing(t *testing.T) {
	img := collection.NewImage(uuid.New(), "a.jpg", "a.jpg", 1024, 800, 600, "jpeg")
	settings := collection.Settings{UseDirectFileAccess: true}
	col := collection.ReconstructCollection(uuid.New(), "test", "/library/test", collection.TypeFolder, settings, 0,
		[]collection.Image{img}, nil, nil, time.Now(), time.Now())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)
	repo.On("AddThumbnailsBatch", mock.Anything, col.ID(), mock.Anything).Return(nil)
	repo.On("AddCacheImagesBatch", mock.Anything, col.ID(), mock.Anything).Return(nil)

	jobsRepo := new(pipelinetest.MockJobStateRepository)
	jobsRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	jobsRepo.On("InitStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	jobsRepo.On("IncrementStageProgress", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	jobsRepo.On("SetStatus", mock.Anything, mock.Anything, jobstate.StatusCompleted).Return(nil)

	enq := &pipelinetest.FakeEnqueuer{}
	jobs := jobstate.NewService(jobsRepo)
	coord := NewCoordinator(repo, jobs, enq)

	require.NoError(t, coord.Resume(context.Background(), col.ID()))

	assert.Empty(t, enq.Tasks())
	repo.AssertCalled(t, "AddThumbnailsBatch", mock.Anything, col.ID(), mock.Anything)
	repo.AssertCalled(t, "AddCacheImagesBatch", mock.Anything, col.ID(), mock.Anything)
	jobsRepo.AssertCalled(t, "SetStatus", mock.Anything, mock.Anything, jobstate.StatusCompleted)
}
