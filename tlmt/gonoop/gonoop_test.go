package gonoop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/housinglord/housing-lord/tlmt"
)

func TestNewLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tel := NewLogging(zap.New(core))

	require.NoError(t, tel.Send(context.Background(), tlmt.NewEvent("u1", tlmt.EventPropertyApproved, nil)))
	require.NoError(t, tel.Close())

	entries := logs.FilterMessage("telemetry event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, tlmt.EventPropertyApproved, entries[0].ContextMap()["event"])
}

func TestSendCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, New().Send(ctx, tlmt.Event{}), context.Canceled)
}
