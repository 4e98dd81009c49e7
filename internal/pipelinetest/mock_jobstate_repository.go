package pipelinetest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/imagevault/pipeline/internal/domain/jobstate"
)

// MockJobStateRepository implements jobstate.Repository for testing.
type MockJobStateRepository struct {
	mock.Mock
}

func (m *MockJobStateRepository) Save(ctx context.Context, job *jobstate.JobState) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStateRepository) FindByID(ctx context.Context, id uuid.UUID) (*jobstate.JobState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobstate.JobState), args.Error(1)
}

func (m *MockJobStateRepository) FindByStatus(ctx context.Context, status jobstate.Status, types []jobstate.Type, limit int) ([]*jobstate.JobState, error) {
	args := m.Called(ctx, status, types, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*jobstate.JobState), args.Error(1)
}

func (m *MockJobStateRepository) InitStage(ctx context.Context, jobID uuid.UUID, stageName string, totalItems int) error {
	args := m.Called(ctx, jobID, stageName, totalItems)
	return args.Error(0)
}

func (m *MockJobStateRepository) IncrementStageProgress(ctx context.Context, jobID uuid.UUID, stageName string, completedDelta, failedDelta int) error {
	args := m.Called(ctx, jobID, stageName, completedDelta, failedDelta)
	return args.Error(0)
}

func (m *MockJobStateRepository) IncrementCompleted(ctx context.Context, jobID uuid.UUID, n int) error {
	args := m.Called(ctx, jobID, n)
	return args.Error(0)
}

func (m *MockJobStateRepository) IncrementFailed(ctx context.Context, jobID uuid.UUID, n int) error {
	args := m.Called(ctx, jobID, n)
	return args.Error(0)
}

func (m *MockJobStateRepository) IncrementSkipped(ctx context.Context, jobID uuid.UUID, n int) error {
	args := m.Called(ctx, jobID, n)
	return args.Error(0)
}

func (m *MockJobStateRepository) TrackError(ctx context.Context, jobID uuid.UUID, errorKind string) (int, error) {
	args := m.Called(ctx, jobID, errorKind)
	return args.Int(0), args.Error(1)
}

func (m *MockJobStateRepository) SetStatus(ctx context.Context, jobID uuid.UUID, status jobstate.Status) error {
	args := m.Called(ctx, jobID, status)
	return args.Error(0)
}

func (m *MockJobStateRepository) SetStageStatus(ctx context.Context, jobID uuid.UUID, stageName string, status jobstate.StageStatus) error {
	args := m.Called(ctx, jobID, stageName, status)
	return args.Error(0)
}
