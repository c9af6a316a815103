// Package goposthog ships telemetry events to PostHog.
package goposthog

import (
	"context"
	"errors"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/housinglord/housing-lord/tlmt"
)

const (
	DefaultEndpoint  = "https://eu.i.posthog.com"
	defaultInterval  = 10 * time.Second
	defaultBatchSize = 50
)

var errMissingKey = errors.New("posthog api key is required")

type Config struct {
	APIKey    string
	Endpoint  string
	Interval  time.Duration
	BatchSize int
}

type client struct {
	ph posthog.Client
}

func New(cfg Config) (tlmt.Telemetry, error) {
	if cfg.APIKey == "" {
		return nil, errMissingKey
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	ph, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:  cfg.Endpoint,
		Interval:  cfg.Interval,
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	return &client{ph: ph}, nil
}

// Send queues the event; delivery happens in batches in the background
func (c *client) Send(ctx context.Context, ev tlmt.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	capture := posthog.Capture{
		DistinctId: ev.DistinctID,
		Event:      ev.Name,
		Timestamp:  time.Now().UTC(),
		Properties: posthog.Properties(ev.Properties),
	}

	if err := capture.Validate(); err != nil {
		return err
	}

	return c.ph.Enqueue(capture)
}

// Close flushes queued events
func (c *client) Close() error {
	return c.ph.Close()
}
