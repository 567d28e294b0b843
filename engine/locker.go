package engine

import (
	"context"
	"sync"
)

// sessionLocker serializes operations per session. Each session gets a
// one-slot channel used as a mutex; entries are reference counted and
// removed once nobody holds or waits for them.
type sessionLocker struct {
	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocker() *sessionLocker {
	return &sessionLocker{locks: make(map[int64]*sessionLock)}
}

// lock blocks until the session is free or ctx is done. The returned
// function releases the lock and is safe to call more than once.
func (l *sessionLocker) lock(ctx context.Context, sessionID int64) (func(), error) {
	l.mu.Lock()

	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionID] = sl
	}
	sl.refs++

	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, sl)
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-sl.ch
			l.release(sessionID, sl)
		})
	}, nil
}

func (l *sessionLocker) release(sessionID int64, sl *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, sessionID)
	}
}

// size returns the number of sessions currently locked or awaited.
func (l *sessionLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
