package sessions

import (
	"context"
	"time"
)

// LockingStore wraps a Store with per-call write locking. The turn
// orchestrator runs each turn inside WithLock; Sweep takes the same lock
// before evicting, so a sweep can never race destructively with an
// in-flight turn for the session it is about to remove.
//
// Thread Safety:
// LockingStore is safe for concurrent use.
type LockingStore struct {
	Store
	locks       *LockManager
	lockTimeout time.Duration
	nowFunc     func() time.Time
}

// NewLockingStore wraps store with the given lock manager.
func NewLockingStore(store Store, locks *LockManager, lockTimeout time.Duration) *LockingStore {
	return &LockingStore{
		Store:       store,
		locks:       locks,
		lockTimeout: lockTimeout,
		nowFunc:     time.Now,
	}
}

// SetNowFunc overrides the clock used to compute sweep cutoffs. For
// tests.
func (s *LockingStore) SetNowFunc(now func() time.Time) {
	s.nowFunc = now
}

// WithLock executes fn while holding callID's write lock. Compound
// operations (read, mutate, persist) get atomic per-call guarantees.
func (s *LockingStore) WithLock(ctx context.Context, callID string, fn func(Store) error) error {
	release, err := s.locks.Acquire(ctx, callID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	return fn(s.Store)
}

// Delete removes a session under its write lock.
func (s *LockingStore) Delete(ctx context.Context, callID string) error {
	release, err := s.locks.Acquire(ctx, callID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	return s.Store.Delete(ctx, callID)
}

// Sweep evicts idle sessions one at a time under their write locks.
// Calls whose lock is held (a turn in flight) are skipped; the next sweep
// picks them up if they are still idle. Staleness is re-checked under the
// lock because the turn that held the lock may have refreshed the
// session.
func (s *LockingStore) Sweep(ctx context.Context, idleThreshold time.Duration) (int, error) {
	cutoff := s.nowFunc().Add(-idleThreshold)
	ids, err := s.Store.StaleIDs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		release, ok := s.locks.TryAcquire(id)
		if !ok {
			continue
		}

		session, err := s.Store.Get(ctx, id)
		if err == nil && session.LastInteraction.Before(cutoff) {
			if err := s.Store.Delete(ctx, id); err == nil {
				removed++
			}
		}
		release()

		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}
	}
	return removed, nil
}
