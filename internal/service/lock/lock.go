package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLockTimeout = errors.New("timed out waiting for operator lock")
)

const (
	DefaultTTL          = 2 * time.Minute
	defaultRetryBackoff = 100 * time.Millisecond
)

// Locker serializes webhook processing per operator.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

type NoopLocker struct{}

func NewNoopLocker() NoopLocker {
	return NoopLocker{}
}

func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
