// Package notifyworker consumes queued notifications and emails them.
package notifyworker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/redis"
	"github.com/housinglord/housing-lord/redis/config"
	"github.com/housinglord/housing-lord/redis/tasks"
	"github.com/housinglord/housing-lord/runner"
)

type worker struct {
	cfg     *config.RedisConfig
	server  *redis.Server
	handler *tasks.Handler
	logger  *zap.Logger
}

func New(cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	redisCfg, ok, err := runner.RedisConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: the notify worker needs redis", runner.ErrInvalidConfig)
	}

	sender, err := runner.NewSender(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create mailer: %w", err)
	}

	deliverer := runner.NewDeliverer(cfg, sender, logger)

	return &worker{
		cfg:     redisCfg,
		server:  redis.NewServer(redisCfg, logger),
		handler: tasks.NewHandler(deliverer, tasks.WithTaskTimeout(cfg.SendTimeout), tasks.WithLogger(logger)),
		logger:  logger,
	}, nil
}

func (w *worker) Run(ctx context.Context) error {
	w.logger.Info("starting notification worker",
		zap.String("addr", w.cfg.GetRedisAddr()),
		zap.Int("workers", w.cfg.Workers),
		zap.Int("max_retries", w.cfg.MaxRetries),
	)

	if err := w.server.Start(w.handler.Mux()); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (w *worker) Close(context.Context) error {
	w.logger.Info("shutting down notification worker")
	w.server.Shutdown()

	return nil
}
