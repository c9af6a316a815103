package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/runner"
	"github.com/housinglord/housing-lord/runner/notifyworker"
	"github.com/housinglord/housing-lord/runner/webrunner"
)

func main() {
	_ = godotenv.Load() // Load .env file if present

	cfg, err := runner.ParseConfig(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	runner.Banner(cfg)

	logger, err := runner.NewLogger(cfg.Debug)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, cfg, logger))
}

func run(ctx context.Context, cfg *runner.Config, logger *zap.Logger) int {
	defer runner.Telemetry(logger).Close()

	runnerInstance, err := runnerFactory(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return 1
	}

	code := 0

	if err := runnerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runner failed", zap.Error(err))

		code = 1
	}

	logger.Info("shutting down")

	if err := runnerInstance.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Error("failed to close runner", zap.Error(err))

		code = 1
	}

	return code
}

func runnerFactory(ctx context.Context, cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeWeb:
		return webrunner.New(ctx, cfg, logger)
	case runner.RunModeNotifyWorker:
		return notifyworker.New(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}
}
