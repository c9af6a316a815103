package goposthog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/tlmt"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, errMissingKey)
}

func TestSend(t *testing.T) {
	c, err := New(Config{APIKey: "phc_test", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ev := tlmt.NewEvent("user_1", tlmt.EventInterestCreated, map[string]any{"property_id": "p1"})
	require.NoError(t, c.Send(context.Background(), ev))

	assert.Error(t, c.Send(context.Background(), tlmt.Event{Name: "no_distinct_id"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, ev), context.Canceled)
}
