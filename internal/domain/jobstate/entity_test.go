package jobstate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobState_Valid(t *testing.T) {
	j, err := NewJobState(TypeCollectionScan, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status())
	assert.NotEqual(t, uuid.Nil, j.ID())
}

func TestNewJobState_RequiresType(t *testing.T) {
	_, err := NewJobState("", nil)
	assert.Error(t, err)
}

func TestInitStage_CreatesStage(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("thumbnail", 82)

	stage, ok := j.Stage("thumbnail")
	require.True(t, ok)
	assert.Equal(t, 82, stage.TotalItems)
	assert.Equal(t, StageStatusPending, stage.Status)
}

func TestInitStage_IdempotentReinit(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("thumbnail", 82)
	j.IncrementStageProgress("thumbnail", 5, 0)
	j.InitStage("thumbnail", 82) // re-init with same total must not reset progress

	stage, _ := j.Stage("thumbnail")
	assert.Equal(t, 82, stage.TotalItems)
	assert.Equal(t, 5, stage.CompletedItems)
}

func TestIncrementStageProgress_MissingStage(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	ok := j.IncrementStageProgress("thumbnail", 1, 0)
	assert.False(t, ok)
}

func TestIncrementStageProgress_TransitionsToRunning(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("cache", 10)
	j.IncrementStageProgress("cache", 1, 0)

	stage, _ := j.Stage("cache")
	assert.Equal(t, StageStatusRunning, stage.Status)
}

func TestCompleteStageIfDone(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("cache", 3)
	j.IncrementStageProgress("cache", 3, 0)

	completed := j.CompleteStageIfDone("cache")
	assert.True(t, completed)

	stage, _ := j.Stage("cache")
	assert.Equal(t, StageStatusCompleted, stage.Status)
}

func TestCompleteStageIfDone_NotYetDone(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("cache", 3)
	j.IncrementStageProgress("cache", 2, 0)

	assert.False(t, j.CompleteStageIfDone("cache"))
}

func TestAllStagesComplete(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	j.InitStage("thumbnail", 2)
	j.InitStage("cache", 2)

	assert.False(t, j.AllStagesComplete())

	j.IncrementStageProgress("thumbnail", 2, 0)
	j.CompleteStageIfDone("thumbnail")
	assert.False(t, j.AllStagesComplete())

	j.IncrementStageProgress("cache", 2, 0)
	j.CompleteStageIfDone("cache")
	assert.True(t, j.AllStagesComplete())
}

func TestAllStagesComplete_NoStages(t *testing.T) {
	j, _ := NewJobState(TypeResumeCollection, nil)
	assert.False(t, j.AllStagesComplete())
}

func TestWithinTotal(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	j.SetTotalItems(3)
	j.IncrementCompleted(2)
	j.IncrementFailed(1)

	assert.True(t, j.WithinTotal())

	j.IncrementSkipped(1)
	assert.False(t, j.WithinTotal())
}

func TestTrackError_CrossesMultipleOfTen(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	var lastCrossed bool
	var lastTotal int
	for i := 0; i < 10; i++ {
		lastTotal, lastCrossed = j.TrackError("decode_failure")
	}
	assert.Equal(t, 10, lastTotal)
	assert.True(t, lastCrossed)
}

func TestTrackError_DoesNotCrossMidway(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	_, crossed := j.TrackError("decode_failure")
	assert.False(t, crossed)
}

func TestSetStatus_TerminalDoesNotTransition(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	j.SetStatus(StatusRunning)
	j.SetStatus(StatusCompleted)

	ok := j.SetStatus(StatusRunning)
	assert.False(t, ok)
	assert.Equal(t, StatusCompleted, j.Status())
}

func TestSetStatus_NonTerminalTransitions(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	ok := j.SetStatus(StatusRunning)
	assert.True(t, ok)
	assert.Equal(t, StatusRunning, j.Status())
}

func TestMarkAndClearStalled(t *testing.T) {
	j, _ := NewJobState(TypeCollectionScan, nil)
	assert.Nil(t, j.StalledAt())

	now := j.UpdatedAt()
	j.MarkStalled(now)
	assert.NotNil(t, j.StalledAt())

	j.ClearStalled()
	assert.Nil(t, j.StalledAt())
}

func TestStage_IsComplete(t *testing.T) {
	s := Stage{TotalItems: 5, CompletedItems: 5}
	assert.True(t, s.IsComplete())

	s2 := Stage{TotalItems: 5, CompletedItems: 4}
	assert.False(t, s2.IsComplete())

	s3 := Stage{TotalItems: 0, CompletedItems: 0}
	assert.True(t, s3.IsComplete())
}
