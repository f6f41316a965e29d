package webdav

import (
	"context"
	"fmt"
	"time"
)

// infiniteTimeout stands in for RFC 4918's "Infinite" Timeout value,
// which LockDetails.Duration and Refresh's duration argument represent
// as a negative number (the teacher's convention, carried over
// verbatim in LockDetails' doc comment). The extended acquire/refresh
// paths require a strictly positive timeout (§3), so Create and Refresh
// translate "infinite" into a practically-unbounded duration rather
// than special-casing a separate never-expires representation.
const infiniteTimeout = 100 * 365 * 24 * time.Hour

// Create implements LockSystem.Create by delegating to Lock.
func (m *Manager) Create(now time.Time, details LockDetails) (token string, err error) {
	timeout := details.Duration
	if timeout <= 0 {
		timeout = infiniteTimeout
	}
	shareMode := details.ShareMode
	if shareMode == "" {
		shareMode = ShareExclusive
	}

	result, err := m.Lock(context.Background(), LockRequest{
		Path:       details.Root,
		Recursive:  !details.ZeroDepth,
		Owner:      details.OwnerXML,
		AccessType: AccessWrite,
		ShareMode:  shareMode,
		Timeout:    timeout,
	})
	if err != nil {
		return "", err
	}
	if result.Kind == LockConflicted {
		return "", ErrLocked
	}
	return result.Lock.StateToken(), nil
}

// Refresh implements LockSystem.Refresh: refresh the lock named
// directly by token, bypassing If-header evaluation (the narrower
// verb the teacher's original interface names). Runs under m.mutateMu
// for the same reason RefreshWithIf does (see Manager.mutateMu's doc
// comment).
func (m *Manager) Refresh(now time.Time, token string, duration time.Duration) (LockDetails, error) {
	m.mutateMu.Lock()
	defer m.mutateMu.Unlock()

	ctx := context.Background()
	timeout := duration
	if timeout <= 0 {
		timeout = infiniteTimeout
	}

	tx, err := m.beginTx(ctx)
	if err != nil {
		return LockDetails{}, err
	}

	sl, found, err := tx.Get(ctx, token)
	if err != nil {
		return LockDetails{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !found {
		return LockDetails{}, ErrNoSuchLock
	}

	rounded := m.round.Time(m.clk.Now())
	refreshed := fromStoreLock(sl).withRefresh(rounded, m.round.Duration(timeout))

	if _, err := tx.Update(ctx, toStoreLock(refreshed)); err != nil {
		return LockDetails{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := m.commit(ctx, tx); err != nil {
		return LockDetails{}, err
	}

	m.cleanup.Remove(refreshed.StateToken())
	m.cleanup.Add(refreshed.StateToken(), refreshed.ExpiresAt())

	return LockDetails{
		Root:      refreshed.Path(),
		Duration:  refreshed.Timeout(),
		OwnerXML:  refreshed.Owner(),
		ZeroDepth: !refreshed.Recursive(),
		ShareMode: refreshed.ShareMode(),
	}, nil
}

// Unlock implements LockSystem.Unlock, the teacher's chosen verb for
// Release by token alone: the lock's own path is looked up first so
// that Release's path-must-reference-match check is always satisfied
// for a direct token-based unlock.
func (m *Manager) Unlock(now time.Time, token string) error {
	ctx := context.Background()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return err
	}
	sl, found, err := tx.Get(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !found {
		return ErrNoSuchLock
	}

	status, err := m.Release(ctx, sl.Path, token)
	if err != nil {
		return err
	}
	switch status {
	case ReleaseSuccess:
		return nil
	case ReleaseNoLock:
		return ErrNoSuchLock
	default:
		return ErrForbidden
	}
}
