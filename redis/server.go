package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/redis/config"
)

// Server wraps asynq server functionality
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	logger *zap.Logger
	mu     sync.Mutex
}

// NewServer creates a server that retries failed tasks after a fixed delay
// and logs tasks whose retries are exhausted.
func NewServer(cfg *config.RedisConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, logger: logger}

	s.server = asynq.NewServer(
		cfg.AsynqOpt(),
		asynq.Config{
			Concurrency:     cfg.Workers,
			RetryDelayFunc:  s.retryDelay,
			ErrorHandler:    asynq.ErrorHandlerFunc(s.handleError),
			Queues:          cfg.QueuePriorities,
			StrictPriority:  true,
			ShutdownTimeout: 15 * time.Second,
			Logger:          newAsynqLogger(logger),
		},
	)

	return s
}

// Start starts processing tasks with the provided handler
func (s *Server) Start(mux *asynq.ServeMux) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown waits for active tasks to finish and stops the server
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server.Shutdown()
}

func (s *Server) retryDelay(n int, err error, task *asynq.Task) time.Duration {
	s.logger.Warn("task failed, retry scheduled",
		zap.String("type", task.Type()),
		zap.Int("retry", n),
		zap.Duration("delay", s.cfg.RetryDelay),
		zap.Error(err),
	)

	return s.cfg.RetryDelay
}

func (s *Server) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	if retried < maxRetry {
		return
	}

	s.logger.Error("task dropped after retries",
		zap.String("type", task.Type()),
		zap.Int("attempts", retried+1),
		zap.Error(err),
	)
}

type asynqLogger struct {
	l *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) asynqLogger {
	return asynqLogger{l: logger.Named("asynq").Sugar()}
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(args...) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(args...) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(args...) }
func (a asynqLogger) Error(args ...any) { a.l.Error(args...) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal(args...) }
