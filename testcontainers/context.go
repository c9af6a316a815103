// Package testcontainers starts the Redis and PostgreSQL containers used by
// integration tests and tears them down when the test ends.
//
// Basic usage:
//
//	func TestLocking(t *testing.T) {
//	    testcontainers.WithRedis(t, func(tc *testcontainers.TestContext) {
//	        err := tc.Redis.Set(tc.Context(), "key", "value", time.Hour).Err()
//	        require.NoError(t, err)
//	    })
//	}
//
// Integration tests are skipped when running with -short.
//
// Prerequisites:
//   - Docker must be installed and running
//   - Network access to pull Docker images
package testcontainers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
)

const (
	// defaultTimeout is the maximum time to wait for container startup
	defaultTimeout = 60 * time.Second
)

// Service selects a container to start
type Service int

const (
	ServiceRedis Service = iota
	ServicePostgres
)

// TestContext holds the started containers, their clients and connection
// settings. Resources are released by Cleanup in reverse order of creation.
type TestContext struct {
	t *testing.T

	ctx        context.Context
	cancelFunc context.CancelFunc
	cleanup    []func()

	Redis *redis.Client
	DB    *pgxpool.Pool

	// RedisURL and PostgresDSN point at the started containers
	RedisURL    string
	PostgresDSN string
}

// NewTestContext starts the requested services, or both when none are given.
// It skips the test in short mode and fails it if a container cannot start.
func NewTestContext(t *testing.T, services ...Service) *TestContext {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if len(services) == 0 {
		services = []Service{ServiceRedis, ServicePostgres}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	tc := &TestContext{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
	}

	for _, s := range services {
		var err error

		switch s {
		case ServiceRedis:
			err = tc.initRedis()
		case ServicePostgres:
			err = tc.initPostgres()
		}

		if err != nil {
			tc.Cleanup()
			t.Fatalf("Failed to initialize test containers: %v", err)
		}
	}

	return tc
}

// WithTestContext runs fn with both containers and cleans up afterwards
func WithTestContext(t *testing.T, fn func(*TestContext)) {
	t.Helper()

	tc := NewTestContext(t)
	defer tc.Cleanup()

	fn(tc)
}

// WithRedis runs fn with only a Redis container
func WithRedis(t *testing.T, fn func(*TestContext)) {
	t.Helper()

	tc := NewTestContext(t, ServiceRedis)
	defer tc.Cleanup()

	fn(tc)
}

// WithPostgres runs fn with only a PostgreSQL container
func WithPostgres(t *testing.T, fn func(*TestContext)) {
	t.Helper()

	tc := NewTestContext(t, ServicePostgres)
	defer tc.Cleanup()

	fn(tc)
}

// Context is bounded by the container startup timeout
func (tc *TestContext) Context() context.Context {
	return tc.ctx
}

// Cleanup releases all resources in reverse order of creation
func (tc *TestContext) Cleanup() {
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}

	tc.cleanup = nil
	tc.cancelFunc()
}

func (tc *TestContext) addCleanup(fn func()) {
	tc.cleanup = append(tc.cleanup, fn)
}

func (tc *TestContext) terminateOnCleanup(name string, c testcontainers.Container) {
	tc.addCleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			tc.t.Errorf("Failed to terminate %s container: %v", name, err)
		}
	})
}

func (tc *TestContext) initRedis() error {
	container, addr, err := start(tc.ctx, redisImage)
	if container != nil {
		tc.terminateOnCleanup("Redis", container)
	}

	if err != nil {
		return err
	}

	tc.RedisURL = redisURL(addr)
	tc.Redis = redis.NewClient(&redis.Options{Addr: addr})
	tc.addCleanup(func() {
		if err := tc.Redis.Close(); err != nil {
			tc.t.Errorf("Failed to close Redis client: %v", err)
		}
	})

	return nil
}

func (tc *TestContext) initPostgres() error {
	container, addr, err := start(tc.ctx, postgresImage)
	if container != nil {
		tc.terminateOnCleanup("Postgres", container)
	}

	if err != nil {
		return err
	}

	tc.PostgresDSN = postgresDSN(addr)

	pool, err := pgxpool.New(tc.ctx, tc.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	tc.DB = pool
	tc.addCleanup(pool.Close)

	return nil
}
