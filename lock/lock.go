// Package lock provides keyed mutual exclusion used to serialize
// find-or-create sequences against stores that cannot do "insert if absent"
// atomically on their own.
package lock

import (
	"context"
	"sync"
)

// Unlock releases a lock obtained from a Locker. Calling it more than once
// is a no-op.
type Unlock func()

// Locker hands out exclusive locks per key
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Local is an in-process keyed mutex. Entries are reference counted and
// removed once nobody holds or waits on them.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()

	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}

	e.refs++

	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)

		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or waited on
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.keys)
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
