package webdav

import "context"

// ActiveLocks implements ExtendedLockSystem.ActiveLocks (§4.F GetLocks):
// every currently committed active lock, read via a fresh transaction.
func (m *Manager) ActiveLocks(ctx context.Context) ([]ActiveLock, error) {
	tx, err := m.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	return m.readLocks(ctx, tx)
}

// AffectedLocks implements ExtendedLockSystem.AffectedLocks (§4.F
// GetAffectedLocks): Find over the current lock set, flattened in
// parent, reference, child order.
func (m *Manager) AffectedLocks(ctx context.Context, path string, findChildren, findParents bool) ([]ActiveLock, error) {
	tx, err := m.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return nil, err
	}
	return find(locks, path, findChildren, findParents).Flatten(), nil
}
