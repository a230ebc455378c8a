package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when acquiring a per-call lock times out.
var ErrLockTimeout = errors.New("sessions: lock acquisition timeout")

// callLock is the lock state for a single call ID. The lock is held by
// whoever holds the token in ch, which keeps acquisition selectable
// against timers and context cancellation.
type callLock struct {
	ch chan struct{}

	mu       sync.Mutex
	acquired time.Time
}

func newCallLock() *callLock {
	return &callLock{ch: make(chan struct{}, 1)}
}

func (l *callLock) touch() {
	l.mu.Lock()
	l.acquired = time.Now()
	l.mu.Unlock()
}

// LockManager hands out write locks keyed by call ID. It serializes turn
// processing per call so duplicate or out-of-order webhook deliveries
// cannot interleave reads and writes for the same session, while turns
// for different calls proceed fully in parallel.
//
// Thread Safety:
// LockManager is safe for concurrent use.
type LockManager struct {
	mu         sync.Mutex
	locks      map[string]*callLock
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewLockManager creates a lock manager. defaultTTL bounds how long an
// Acquire with no explicit timeout will wait.
func NewLockManager(defaultTTL time.Duration) *LockManager {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	m := &LockManager{
		locks:      make(map[string]*callLock),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *LockManager) lockFor(callID string) *callLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[callID]
	if !ok {
		lock = newCallLock()
		m.locks[callID] = lock
	}
	return lock
}

// Acquire takes the write lock for callID, waiting up to timeout (or the
// manager default when timeout <= 0). It returns a release function that
// must be called exactly once. A timed-out or canceled Acquire leaves
// the lock untouched for the current holder and later waiters.
func (m *LockManager) Acquire(ctx context.Context, callID string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = m.defaultTTL
	}

	lock := m.lockFor(callID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock.ch <- struct{}{}:
		lock.touch()
		return func() { <-lock.ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock without waiting. It returns false if the
// lock is held. The sweeper uses it to skip calls with in-flight turns.
func (m *LockManager) TryAcquire(callID string) (func(), bool) {
	lock := m.lockFor(callID)

	select {
	case lock.ch <- struct{}{}:
		lock.touch()
		return func() { <-lock.ch }, true
	default:
		return nil, false
	}
}

// IsLocked reports whether callID's lock is currently held.
func (m *LockManager) IsLocked(callID string) bool {
	m.mu.Lock()
	lock, ok := m.locks[callID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return len(lock.ch) == 1
}

// Close stops the background cleanup loop.
func (m *LockManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// cleanupLoop drops lock entries for calls that have been idle long
// enough that the session sweeper has already reclaimed them.
func (m *LockManager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *LockManager) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, lock := range m.locks {
		if len(lock.ch) == 1 {
			continue
		}
		lock.mu.Lock()
		stale := lock.acquired.Before(cutoff)
		lock.mu.Unlock()
		if stale {
			delete(m.locks, id)
		}
	}
}
