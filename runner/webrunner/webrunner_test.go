package webrunner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/housinglord/housing-lord/runner"
	"github.com/housinglord/housing-lord/runner/webrunner"
)

func TestRunStopsOnCancel(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	t.Setenv("DISABLE_TELEMETRY", "1")

	cfg := &runner.Config{
		RunMode:         runner.RunModeWeb,
		Addr:            "127.0.0.1:0",
		Store:           runner.StoreMemory,
		SMTPPort:        587,
		NotifyAttempts:  1,
		NotifyWorkers:   1,
		StoreTimeout:    time.Second,
		SendTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}

	r, err := webrunner.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- r.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}

	require.NoError(t, r.Close(context.Background()))
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := &runner.Config{Store: "mongo", NotifyAttempts: 1, NotifyWorkers: 1}

	_, err := webrunner.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.ErrorIs(t, err, runner.ErrInvalidConfig)
}
