package webdav

import (
	"context"
	"fmt"

	"github.com/rfielding/davlock/internal/lockurl"
)

// Release implements ExtendedLockSystem.Release (§4.F Release). path is
// compared against the lock's own scope as a depth-0 query: only an
// exact Reference match is acceptable (a client may only release a lock
// by naming precisely the resource it locked, never a descendant or an
// ancestor), even when the lock itself is recursive. The whole
// get-then-remove-then-commit sequence runs under m.mutateMu so a
// concurrent RefreshWithIf/Refresh of the same token cannot race this
// release's snapshot (see Manager.mutateMu's doc comment).
func (m *Manager) Release(ctx context.Context, path, stateToken string) (ReleaseStatus, error) {
	m.mutateMu.Lock()
	defer m.mutateMu.Unlock()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return 0, err
	}

	sl, found, err := tx.Get(ctx, stateToken)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !found {
		return ReleaseNoLock, nil
	}
	lock := fromStoreLock(sl)

	queryURL := lockurl.Normalize(path, isCollectionPath(path))
	lockURL := lockurl.Normalize(lock.path, isCollectionPath(lock.path))
	if lockurl.Compare(queryURL, false, lockURL, lock.recursive) != lockurl.Reference {
		return ReleaseInvalidLockRange, nil
	}

	if _, err := tx.Remove(ctx, stateToken); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := m.commit(ctx, tx); err != nil {
		return 0, err
	}

	m.cleanup.Remove(stateToken)
	m.clearConfirmed(stateToken)
	m.publish(LockReleased, lock)
	return ReleaseSuccess, nil
}

// ReleaseExpired implements cleanup.Releaser: it is called back by the
// cleanup actor once stateToken's deadline has passed. A token already
// released through some other path (a racing client Unlock, or a
// concurrent expiration) is tolerated as a no-op, per cleanup.Releaser's
// contract. Runs under m.mutateMu for the same reason Release does.
func (m *Manager) ReleaseExpired(ctx context.Context, stateToken string) {
	m.mutateMu.Lock()
	defer m.mutateMu.Unlock()

	tx, err := m.beginTx(ctx)
	if err != nil {
		if m.log != nil {
			m.log.ErrorContext(ctx, "cleanup: failed to begin transaction", "token", stateToken, "err", err)
		}
		return
	}

	sl, found, err := tx.Get(ctx, stateToken)
	if err != nil || !found {
		return
	}
	lock := fromStoreLock(sl)

	if _, err := tx.Remove(ctx, stateToken); err != nil {
		if m.log != nil {
			m.log.ErrorContext(ctx, "cleanup: failed to remove expired lock", "token", stateToken, "err", err)
		}
		return
	}
	if err := m.commit(ctx, tx); err != nil {
		if m.log != nil {
			m.log.ErrorContext(ctx, "cleanup: failed to commit expiration", "token", stateToken, "err", err)
		}
		return
	}

	m.clearConfirmed(stateToken)
	m.publish(LockReleased, lock)
}
