package notify

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by redis.Client
type Enqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error
}

// QueueDispatcher hands notifications to the task queue. The worker side
// makes one attempt per task and asynq re-runs failed tasks.
type QueueDispatcher struct {
	client   Enqueuer
	attempts int
	queue    string
	timeout  time.Duration
}

var _ Dispatcher = (*QueueDispatcher)(nil)

func NewQueue(client Enqueuer, attempts int, queue string) *QueueDispatcher {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	if queue == "" {
		queue = "default"
	}

	return &QueueDispatcher{
		client:   client,
		attempts: attempts,
		queue:    queue,
		timeout:  DefaultSendTimeout + 5*time.Second,
	}
}

func (q *QueueDispatcher) Dispatch(ctx context.Context, n Notification) error {
	payload, err := Encode(n)
	if err != nil {
		return err
	}

	return q.client.EnqueueTask(ctx, n.Type, payload,
		asynq.MaxRetry(q.attempts-1),
		asynq.Queue(q.queue),
		asynq.Timeout(q.timeout),
	)
}
