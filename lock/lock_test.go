package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock, err := l.Lock(context.Background(), "interest:u1:p1")
			if !assert.NoError(t, err) {
				return
			}

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}

			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, l.Len())
}

func TestLocalIndependentKeys(t *testing.T) {
	l := NewLocal()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalContextCancelled(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	assert.Equal(t, 0, l.Len())
}
