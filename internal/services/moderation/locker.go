package moderation

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Locker serializes work on one report. TryLock never waits: false means
// another holder is working on the same name.
type Locker interface {
	TryLock(ctx context.Context, name string) (func(), bool, error)
}

// MemoryLocker is the single-process Locker used when Redis is not configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return nil, false, nil
	}
	l.held[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, true, nil
}

// FallbackLocker prefers a shared Locker and takes a local lock for any call
// the shared one could not serve, so an unreachable Redis only narrows the
// guard to this process instead of stopping publication.
type FallbackLocker struct {
	shared Locker
	local  *MemoryLocker
	logger *zap.Logger
}

func NewFallbackLocker(shared Locker, logger *zap.Logger) *FallbackLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLocker{shared: shared, local: NewMemoryLocker(), logger: logger}
}

func (l *FallbackLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	if l.shared != nil {
		release, ok, err := l.shared.TryLock(ctx, name)
		if err == nil {
			return release, ok, nil
		}
		l.logger.Warn("shared lock unavailable, using local lock", zap.String("lock", name), zap.Error(err))
	}
	return l.local.TryLock(ctx, name)
}
