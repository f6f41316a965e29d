package webdav

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RefreshWithIf implements ExtendedLockSystem.RefreshWithIf (§4.F
// Refresh). For each list in header that requires a state token, it
// finds the locks covering that list's path (an untagged list's empty
// path normalizes to the root "/"), evaluates the list
// against (entity tag, lock tokens), and refreshes the lock named by
// the list's token condition if the list matched. The whole
// read-then-update-then-commit sequence runs under m.mutateMu so a
// concurrent Release/ReleaseExpired of the same token cannot race this
// refresh's snapshot (see Manager.mutateMu's doc comment).
func (m *Manager) RefreshWithIf(ctx context.Context, fs FileSystem, header IfHeader, newTimeout time.Duration) (LockRefreshResult, error) {
	m.mutateMu.Lock()
	defer m.mutateMu.Unlock()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return LockRefreshResult{}, err
	}

	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return LockRefreshResult{}, err
	}

	now := m.round.Time(m.clk.Now())
	timeout := m.round.Duration(newTimeout)

	var refreshed []ActiveLock
	var failedHrefs []string

	for _, list := range header.Lists {
		if !list.RequiresStateToken() {
			continue
		}
		path := list.Path

		// Locks that cover path: Reference (at path) or Parent (strictly
		// above path and recursive).
		status := find(locks, path, false, true)
		covering := append(append([]ActiveLock{}, status.Reference...), status.Parent...)
		if len(covering) == 0 {
			failedHrefs = append(failedHrefs, path)
			continue
		}

		info := newPathInfo(covering)

		var entityTag string
		if list.RequiresEntityTag() && fs != nil {
			tag, err := fs.Stat(ctx, path)
			switch {
			case err == nil:
				entityTag = string(tag)
			case errors.Is(err, ErrMissing):
				// Tolerated: refresh proceeds without an entity tag
				// (the condition will then simply fail to match),
				// per §9's preserved behavior. Logged, not treated
				// as an error.
				if m.log != nil {
					m.log.DebugContext(ctx, "refresh: target missing, skipping entity tag fetch", "path", path)
				}
			default:
				return LockRefreshResult{}, fmt.Errorf("%w: %v", ErrBackend, err)
			}
		}

		matched, ok := matchRefreshCandidate(list, entityTag, info)
		if !ok {
			failedHrefs = append(failedHrefs, path)
			continue
		}

		refreshedLock := matched.withRefresh(now, timeout)
		if _, err := tx.Update(ctx, toStoreLock(refreshedLock)); err != nil {
			return LockRefreshResult{}, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		refreshed = append(refreshed, refreshedLock)
	}

	if len(refreshed) == 0 {
		return LockRefreshResult{FailedHrefs: failedHrefs}, fmt.Errorf("%w: lock-token-matches-request-uri", ErrNoSuchLock)
	}

	if err := m.commit(ctx, tx); err != nil {
		return LockRefreshResult{}, err
	}

	for _, l := range refreshed {
		m.cleanup.Remove(l.StateToken())
		m.cleanup.Add(l.StateToken(), l.ExpiresAt())
	}

	return LockRefreshResult{Refreshed: refreshed, FailedHrefs: failedHrefs}, nil
}

// matchRefreshCandidate finds the unique lock whose token the list
// names, provided the list matches overall against (entityTag, info).
func matchRefreshCandidate(list IfHeaderList, entityTag string, info PathInfo) (ActiveLock, bool) {
	if !list.Matches(entityTag, info.TokenSet()) {
		return ActiveLock{}, false
	}
	for _, tok := range list.TokensRequired() {
		if l, ok := info.ByToken[tok]; ok {
			return l, true
		}
	}
	return ActiveLock{}, false
}
