// Package gonoop provides telemetry that never leaves the process.
package gonoop

import (
	"context"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/tlmt"
)

type discard struct {
	logger *zap.Logger
}

// New drops every event
func New() tlmt.Telemetry {
	return discard{logger: zap.NewNop()}
}

// NewLogging drops events after writing them to logger at debug level
func NewLogging(logger *zap.Logger) tlmt.Telemetry {
	return discard{logger: logger}
}

func (d discard) Send(ctx context.Context, ev tlmt.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger.Debug("telemetry event",
		zap.String("event", ev.Name),
		zap.String("distinct_id", ev.DistinctID),
		zap.Any("properties", ev.Properties),
	)

	return nil
}

func (discard) Close() error {
	return nil
}
