package pipelinetest

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"
)

// FakeEnqueuer implements messagebus.Enqueuer in memory, recording every
// task handed to it instead of publishing to redis.
type FakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *FakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

// Tasks returns every task recorded so far.
func (f *FakeEnqueuer) Tasks() []*asynq.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*asynq.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}
