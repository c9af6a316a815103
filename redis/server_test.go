package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/housinglord/housing-lord/redis/config"
	"github.com/housinglord/housing-lord/testcontainers"
)

func TestServer(t *testing.T) {
	testcontainers.WithRedis(t, func(tc *testcontainers.TestContext) {
		t.Run("retries a failing task until it succeeds", func(t *testing.T) {
			cfg := testConfig(t, tc)
			cfg.Workers = 2

			var calls atomic.Int32
			done := make(chan struct{})

			mux := asynq.NewServeMux()
			mux.HandleFunc("flaky_task", func(context.Context, *asynq.Task) error {
				if calls.Add(1) < 3 {
					return errors.New("transient")
				}

				close(done)

				return nil
			})

			srv := NewServer(cfg, zaptest.NewLogger(t))
			require.NoError(t, srv.Start(mux))
			defer srv.Shutdown()

			client, err := NewClient(context.Background(), cfg)
			require.NoError(t, err)
			defer client.Close()

			require.NoError(t, client.EnqueueTask(context.Background(), "flaky_task", nil,
				asynq.Queue(config.NotificationQueue), asynq.MaxRetry(2)))

			select {
			case <-done:
			case <-time.After(20 * time.Second):
				t.Fatal("task was not retried to completion")
			}

			assert.Equal(t, int32(3), calls.Load())
		})
	})
}

func TestRetryDelayIsFixed(t *testing.T) {
	cfg := &config.RedisConfig{Host: "localhost", Port: 6379, Workers: 1, RetryDelay: 1500 * time.Millisecond}
	srv := NewServer(cfg, nil)

	task := asynq.NewTask("t", nil)
	for n := 0; n < 5; n++ {
		assert.Equal(t, 1500*time.Millisecond, srv.retryDelay(n, errors.New("x"), task))
	}
}
