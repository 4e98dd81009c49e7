package messagebus

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the narrow slice of *asynq.Client every pipeline consumer
// depends on, declared at the point of use so consumer tests can supply a
// fake instead of a live redis connection.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Bus owns the asynq client/server/inspector triple for a pipeline worker.
// It collapses spec.md §6's per-queue prefetch/concurrency table onto
// asynq's three priority-weighted queues.
type Bus struct {
	client    *asynq.Client
	server    *asynq.Server
	inspector *asynq.Inspector
	config    Config
}

// NewBus creates a new message bus backed by the given config's redis address.
func NewBus(config Config) *Bus {
	redisOpt := asynq.RedisClientOpt{Addr: config.RedisAddr}

	client := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Concurrency: config.Concurrency,
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	return &Bus{
		client:    client,
		server:    server,
		inspector: inspector,
		config:    config,
	}
}

// Client returns the asynq client for enqueueing tasks.
func (b *Bus) Client() *asynq.Client {
	return b.client
}

// Inspector returns the asynq inspector, used by pipeline/dlqrecovery to
// browse and requeue archived (dead-lettered) tasks.
func (b *Bus) Inspector() *asynq.Inspector {
	return b.inspector
}

// Start runs the worker server against the given handler mux. Blocks until
// Stop is called or the server encounters a fatal error.
func (b *Bus) Start(mux *asynq.ServeMux) error {
	log.Println("messagebus: starting asynq worker server")
	return b.server.Start(mux)
}

// Run is like Start but blocks until the server shuts down, matching
// asynq.Server.Run's signal-handling convenience.
func (b *Bus) Run(mux *asynq.ServeMux) error {
	log.Println("messagebus: running asynq worker server")
	return b.server.Run(mux)
}

// Stop gracefully stops the worker server and closes the client.
func (b *Bus) Stop() {
	log.Println("messagebus: stopping asynq worker server")
	b.server.Shutdown()

	log.Println("messagebus: closing asynq client")
	if err := b.client.Close(); err != nil {
		log.Printf("messagebus: error closing client: %v", err)
	}
	if err := b.inspector.Close(); err != nil {
		log.Printf("messagebus: error closing inspector: %v", err)
	}
}
