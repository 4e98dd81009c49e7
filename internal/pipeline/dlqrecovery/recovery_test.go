package dlqrecovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/pipelinetest"
)

// fakeInspector is an in-memory asynq.Inspector stand-in, keyed by queue.
type fakeInspector struct {
	mu      sync.Mutex
	tasks   map[string][]*asynq.TaskInfo
	deleted []string // "queue/id"
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{tasks: make(map[string][]*asynq.TaskInfo)}
}

func (f *fakeInspector) archive(queue string, info *asynq.TaskInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[queue] = append(f.tasks[queue], info)
}

func (f *fakeInspector) ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*asynq.TaskInfo, len(f.tasks[queue]))
	copy(out, f.tasks[queue])
	return out, nil
}

func (f *fakeInspector) DeleteTask(queue, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.tasks[queue][:0]
	for _, info := range f.tasks[queue] {
		if info.ID == id {
			f.deleted = append(f.deleted, queue+"/"+id)
			continue
		}
		remaining = append(remaining, info)
	}
	f.tasks[queue] = remaining
	return nil
}

func newTestService(inspector *fakeInspector, enq messagebus.Enqueuer) *Service {
	s := NewService(inspector, enq)
	s.pollInterval = 5 * time.Millisecond
	s.zeroWindow = 20 * time.Millisecond
	s.idleTimeout = 50 * time.Millisecond
	s.hardCap = 2 * time.Second
	return s
}

func TestService_Drain_RecoversMappedArchivedTask(t *testing.T) {
	inspector := newFakeInspector()
	inspector.archive(messagebus.QueueCritical, &asynq.TaskInfo{
		ID: "task-1", Queue: messagebus.QueueCritical, Type: messagebus.TypeThumbnailGeneration, Payload: []byte(`{}`),
	})

	enq := &pipelinetest.FakeEnqueuer{}
	svc := newTestService(inspector, enq)

	require.NoError(t, svc.Drain(context.Background()))

	tasks := enq.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, messagebus.TypeThumbnailGeneration, tasks[0].Type())
	assert.Contains(t, inspector.deleted, messagebus.QueueCritical+"/task-1")
}

func TestService_Drain_LeavesUnmappedTaskArchivedForever(t *testing.T) {
	inspector := newFakeInspector()
	inspector.archive(messagebus.QueueDefault, &asynq.TaskInfo{
		ID: "task-2", Queue: messagebus.QueueDefault, Type: "unknown.type", Payload: []byte(`{}`),
	})

	enq := &pipelinetest.FakeEnqueuer{}
	svc := newTestService(inspector, enq)

	require.NoError(t, svc.Drain(context.Background()))

	assert.Empty(t, enq.Tasks())
	assert.Empty(t, inspector.deleted)
	assert.Len(t, inspector.tasks[messagebus.QueueDefault], 1)
}

func TestService_Drain_StopsOnZeroStreakWhenArchiveEmpty(t *testing.T) {
	inspector := newFakeInspector()
	enq := &pipelinetest.FakeEnqueuer{}
	svc := newTestService(inspector, enq)

	done := make(chan error, 1)
	go func() { done <- svc.Drain(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(1 * time.Second):
		t.Fatal("Drain did not stop on empty archive")
	}
}

func TestService_Drain_RespectsContextCancellation(t *testing.T) {
	inspector := newFakeInspector()
	inspector.archive(messagebus.QueueLow, &asynq.TaskInfo{
		ID: "task-3", Queue: messagebus.QueueLow, Type: "unknown.type", Payload: []byte(`{}`),
	})
	enq := &pipelinetest.FakeEnqueuer{}
	svc := newTestService(inspector, enq)
	svc.idleTimeout = time.Hour // disable idle-based exit so cancellation is what stops it

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Drain(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("Drain did not stop on context cancellation")
	}
}
