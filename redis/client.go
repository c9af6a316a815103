// Package redis wraps the asynq client and server used to move
// notifications out of the request path.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/housinglord/housing-lord/redis/config"
)

// Client enqueues tasks and shares its Redis connection with other users
// such as the distributed lock.
type Client struct {
	queue *asynq.Client
	rdb   goredis.UniversalClient

	closeOnce sync.Once
	closeErr  error
}

// NewClient connects to Redis and fails if it is not reachable
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := cfg.NewUniversalClient()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetRedisAddr(), err), rdb.Close())
	}

	return &Client{
		queue: asynq.NewClient(cfg.AsynqOpt()),
		rdb:   rdb,
	}, nil
}

// Redis is the underlying connection. It is closed by Close.
func (c *Client) Redis() goredis.UniversalClient {
	return c.rdb
}

// EnqueueTask enqueues taskType with payload. Typical options are
// asynq.MaxRetry, asynq.Queue and asynq.Timeout.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	if _, err := c.queue.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	return nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = multierr.Combine(c.queue.Close(), c.rdb.Close())
	})

	return c.closeErr
}
