package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisTTL   = 30 * time.Second
	defaultRedisRetry = 50 * time.Millisecond
	defaultKeyPrefix  = "housinglord:lock:"
)

// only the holder of the token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process talking to the same Redis.
// Locks expire after the TTL so a crashed holder cannot wedge a key.
type Redis struct {
	client redis.UniversalClient
	logger *zap.Logger
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// RedisOption configures a Redis locker
type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.retry = d
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func WithLogger(logger *zap.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		logger: zap.NewNop(),
		ttl:    defaultRedisTTL,
		retry:  defaultRedisRetry,
		prefix: defaultKeyPrefix,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	rkey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, rkey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, r.client, []string{rkey}, token).Err(); err != nil {
				r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
