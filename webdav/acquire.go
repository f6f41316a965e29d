package webdav

import (
	"context"
	"fmt"

	"github.com/rfielding/davlock/internal/conflict"
	"github.com/rfielding/davlock/internal/lockstore"
)

// Lock implements ExtendedLockSystem.Lock (§4.F Acquire). The
// conflict-check-then-add sequence runs under m.acquireMu so that two
// concurrent acquires over overlapping scopes are strictly ordered:
// whichever runs second observes the first's committed lock and is
// conflicted against it, rather than both racing past an identical
// pre-commit snapshot.
func (m *Manager) Lock(ctx context.Context, req LockRequest) (LockResult, error) {
	if req.Path == "" {
		return LockResult{}, fmt.Errorf("%w: empty path", ErrInvalidLockInfo)
	}
	if req.Timeout <= 0 {
		return LockResult{}, fmt.Errorf("%w: non-positive timeout", ErrInvalidLockInfo)
	}
	if req.ShareMode == "" {
		req.ShareMode = ShareExclusive
	}

	m.acquireMu.Lock()
	defer m.acquireMu.Unlock()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return LockResult{}, err
	}

	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return LockResult{}, err
	}

	status := find(locks, req.Path, req.Recursive, true)
	if conflicting := conflict.Conflicting(status, string(req.ShareMode)); len(conflicting) > 0 {
		// The transaction is simply never committed; memstore (and any
		// conformant backend) discards an uncommitted transaction's
		// mutations, and this path never staged any.
		return LockResult{Kind: LockConflicted, Conflict: status}, nil
	}

	lock, err := m.acquireWithTx(ctx, tx, req)
	if err != nil {
		return LockResult{}, err
	}
	return LockResult{Kind: LockSucceeded, Lock: lock}, nil
}

// readLocks fetches and converts every lock currently visible within tx.
func (m *Manager) readLocks(ctx context.Context, tx lockstore.Transaction) ([]ActiveLock, error) {
	storeLocks, err := tx.GetActiveLocks(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	locks := make([]ActiveLock, 0, len(storeLocks))
	for _, sl := range storeLocks {
		locks = append(locks, fromStoreLock(sl))
	}
	return locks, nil
}

// acquireWithTx constructs a fresh ActiveLock for req, adds it within
// tx, commits, then arms the cleanup actor and publishes LockAdded. The
// caller must already have verified the candidate scope does not
// conflict with tx's current lock set.
func (m *Manager) acquireWithTx(ctx context.Context, tx lockstore.Transaction, req LockRequest) (ActiveLock, error) {
	now := m.round.Time(m.clk.Now())
	timeout := m.round.Duration(req.Timeout)

	href := req.Href
	if href == "" {
		href = req.Path
	}

	lock, err := newActiveLock(newActiveLockParams{
		path:            req.Path,
		href:            href,
		recursive:       req.Recursive,
		owner:           req.Owner,
		accessType:      req.AccessType,
		shareMode:       req.ShareMode,
		timeout:         timeout,
		issuedAt:        now,
		lastRefreshedAt: now,
		stateToken:      m.newID(),
	})
	if err != nil {
		return ActiveLock{}, err
	}

	if _, err := tx.Add(ctx, toStoreLock(lock)); err != nil {
		return ActiveLock{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := m.commit(ctx, tx); err != nil {
		return ActiveLock{}, err
	}

	m.cleanup.Add(lock.StateToken(), lock.ExpiresAt())
	m.publish(LockAdded, lock)
	return lock, nil
}
