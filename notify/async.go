package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AsyncDispatcher delivers notifications on a fixed pool of worker
// goroutines fed by a buffered queue.
type AsyncDispatcher struct {
	deliverer *Deliverer
	logger    *zap.Logger
	queue     chan Notification

	mu     sync.RWMutex
	closed bool

	eg     *errgroup.Group
	cancel context.CancelFunc
}

var _ Dispatcher = (*AsyncDispatcher)(nil)

// NewAsync starts workers goroutines immediately. Close must be called to
// drain the queue and stop them.
func NewAsync(deliverer *Deliverer, workers, buffer int, logger *zap.Logger) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}

	if buffer < 0 {
		buffer = 0
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)

	a := &AsyncDispatcher{
		deliverer: deliverer,
		logger:    logger,
		queue:     make(chan Notification, buffer),
		eg:        eg,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			for n := range a.queue {
				a.deliverer.Deliver(ctx, n)
			}

			return nil
		})
	}

	return a
}

// Dispatch queues n without blocking. The request context is not carried
// over: delivery outlives the request that triggered it.
func (a *AsyncDispatcher) Dispatch(_ context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered. When ctx expires first, in-flight retries are abandoned.
func (a *AsyncDispatcher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan error, 1)

	go func() {
		done <- a.eg.Wait()
	}()

	select {
	case err := <-done:
		a.cancel()
		return err
	case <-ctx.Done():
		a.cancel()
		a.logger.Warn("notification queue not drained", zap.Int("pending", len(a.queue)))

		return ctx.Err()
	}
}
