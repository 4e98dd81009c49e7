package bulkops

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/pipeline/internal/domain/collection"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipeline/resume"
	"github.com/imagevault/pipeline/internal/pipelinetest"
)

func TestConsumer_ProcessTask_RescanPublishesCollectionScan(t *testing.T) {
	collectionID := uuid.New()
	enq := &pipelinetest.FakeEnqueuer{}
	consumer := NewConsumer(enq, nil)

	task, err := messagebus.NewBulkOperationTask(messagebus.BulkOperationPayload{
		OpType:     OpRescanCollection,
		Parameters: map[string]any{"collection_id": collectionID.String()},
	})
	require.NoError(t, err)

	require.NoError(t, consumer.ProcessTask(context.Background(), task))

	tasks := enq.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, messagebus.TypeCollectionScan, tasks[0].Type())
}

func TestConsumer_ProcessTask_ResumeInvokesCoordinator(t *testing.T) {
	img := collection.NewImage(uuid.New(), "a.jpg", "a.jpg", 1024, 800, 600, "jpeg")
	col := collection.ReconstructCollection(uuid.New(), "test", "/library/test", collection.TypeFolder, collection.Settings{}, 0,
		[]collection.Image{img}, nil, nil, time.Now(), time.Now())

	repo := new(pipelinetest.MockCollectionRepository)
	repo.On("FindByID", mock.Anything, col.ID()).Return(col, nil)

	jobsRepo := new(pipelinetest.MockJobStateRepository)
	jobsRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	jobsRepo.On("InitStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resumeEnq := &pipelinetest.FakeEnqueuer{}
	resumer := resume.NewCoordinator(repo, jobstate.NewService(jobsRepo), resumeEnq)

	consumer := NewConsumer(nil, resumer)

	task, err := messagebus.NewBulkOperationTask(messagebus.BulkOperationPayload{
		OpType:     OpResumeCollection,
		Parameters: map[string]any{"collection_id": col.ID().String()},
	})
	require.NoError(t, err)

	require.NoError(t, consumer.ProcessTask(context.Background(), task))
	assert.NotEmpty(t, resumeEnq.Tasks())
}

func TestConsumer_ProcessTask_UnknownOpTypeErrors(t *testing.T) {
	consumer := NewConsumer(&pipelinetest.FakeEnqueuer{}, nil)
	task, err := messagebus.NewBulkOperationTask(messagebus.BulkOperationPayload{
		OpType:     "delete-everything",
		Parameters: map[string]any{"collection_id": uuid.New().String()},
	})
	require.NoError(t, err)

	err = consumer.ProcessTask(context.Background(), task)
	assert.Error(t, err)
}

func TestConsumer_ProcessTask_MissingCollectionIDErrors(t *testing.T) {
	consumer := NewConsumer(&pipelinetest.FakeEnqueuer{}, nil)
	task, err := messagebus.NewBulkOperationTask(messagebus.BulkOperationPayload{
		OpType:     OpRescanCollection,
		Parameters: map[string]any{},
	})
	require.NoError(t, err)

	err = consumer.ProcessTask(context.Background(), task)
	assert.Error(t, err)
}
