package webdav

import (
	"context"
	"errors"
	"fmt"

	"github.com/rfielding/davlock/internal/conflict"
	"github.com/rfielding/davlock/internal/lockurl"
)

// LockImplicit implements ExtendedLockSystem.LockImplicit (§4.F
// Implicit acquire): decide whether ifHeaders already name a sufficient
// lock, or whether a fresh lock must be granted on req's behalf.
func (m *Manager) LockImplicit(ctx context.Context, fs FileSystem, ifHeaders []IfHeader, req LockRequest) (ImplicitLock, error) {
	if req.Path == "" {
		return ImplicitLock{}, fmt.Errorf("%w: empty path", ErrInvalidLockInfo)
	}

	if !anyListSupplied(ifHeaders) {
		return m.acquireImplicitFresh(ctx, req)
	}

	tx, err := m.beginTx(ctx)
	if err != nil {
		return ImplicitLock{}, err
	}

	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return ImplicitLock{}, err
	}

	affecting := find(locks, req.Path, req.Recursive, true).Flatten()

	var sawSucceededNoToken bool
	var conflictLocks []ActiveLock
	var relatedCount int

	for _, header := range ifHeaders {
		for _, list := range header.Lists {
			listPath := list.Path
			if listPath == "" {
				listPath = req.Path
			}
			if !pathsRelate(req.Path, listPath) {
				continue
			}
			relatedCount++

			covering := find(affecting, listPath, false, true).Flatten()
			info := newPathInfo(covering)

			var entityTag string
			if list.RequiresEntityTag() && fs != nil {
				if tag, err := fs.Stat(ctx, listPath); err == nil {
					entityTag = string(tag)
				} else if !errors.Is(err, ErrMissing) {
					return ImplicitLock{}, fmt.Errorf("%w: %v", ErrBackend, err)
				}
			}

			if list.Matches(entityTag, info.TokenSet()) {
				if list.RequiresStateToken() {
					var existing []ActiveLock
					for _, tok := range list.TokensRequired() {
						if l, ok := info.ByToken[tok]; ok {
							existing = append(existing, l)
						}
					}
					return ImplicitLock{Kind: ImplicitViaExisting, ExistingLocks: existing}, nil
				}
				sawSucceededNoToken = true
				continue
			}

			if len(covering) > 0 {
				conflictLocks = append(conflictLocks, covering...)
			}
		}
	}

	if sawSucceededNoToken {
		return m.acquireImplicitFresh(ctx, req)
	}
	if len(conflictLocks) > 0 {
		return ImplicitLock{Kind: ImplicitConflict, Conflict: LockStatus{Reference: conflictLocks}}, nil
	}
	return m.acquireImplicitFresh(ctx, req)
}

// acquireImplicitFresh performs a standard conflict-checked acquire,
// reported back as ImplicitFresh. Like Lock, it runs under m.acquireMu
// so a concurrent acquire (implicit or direct) over an overlapping scope
// can never race past this one's pre-commit snapshot.
func (m *Manager) acquireImplicitFresh(ctx context.Context, req LockRequest) (ImplicitLock, error) {
	if req.ShareMode == "" {
		req.ShareMode = ShareExclusive
	}
	m.acquireMu.Lock()
	defer m.acquireMu.Unlock()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return ImplicitLock{}, err
	}

	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return ImplicitLock{}, err
	}

	status := find(locks, req.Path, req.Recursive, true)
	if conflicting := conflict.Conflicting(status, string(req.ShareMode)); len(conflicting) > 0 {
		return ImplicitLock{Kind: ImplicitConflict, Conflict: status}, nil
	}

	lock, err := m.acquireWithTx(ctx, tx, req)
	if err != nil {
		return ImplicitLock{}, err
	}
	return ImplicitLock{Kind: ImplicitFresh, Lock: lock}, nil
}

// anyListSupplied reports whether ifHeaders carries at least one list.
func anyListSupplied(ifHeaders []IfHeader) bool {
	for _, h := range ifHeaders {
		if !h.Empty() {
			return true
		}
	}
	return false
}

// pathsRelate reports whether a tagged If list's path overlaps the
// scope a lock request names, using the same hierarchical comparator
// the rest of this package uses (§4.A), generously treating both sides
// as recursive so reference, ancestor and descendant relations all
// count as "related". Only a wholly disjoint subtree is excluded.
func pathsRelate(queryPath, candidatePath string) bool {
	queryURL := lockurl.Normalize(queryPath, isCollectionPath(queryPath))
	candidateURL := lockurl.Normalize(candidatePath, isCollectionPath(candidatePath))
	return lockurl.Compare(queryURL, true, candidateURL, true) != lockurl.NoMatch
}
