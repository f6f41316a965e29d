// Package lockstore declares the abstract transaction interface any
// storage backend must satisfy to back the lock manager. The manager
// never mutates the active-lock set directly; it always goes through a
// Transaction obtained from a Store.
package lockstore

import "context"

// Lock is the storage-layer view of an active lock: everything the
// backend needs to persist, indexed on StateToken and Path. The manager
// package owns the richer webdav.ActiveLock type and converts to/from
// this shape at the store boundary, so that a backend implementation
// never needs to import the webdav package.
type Lock struct {
	Path            string
	Href            string
	Recursive       bool
	Owner           string
	AccessType      string
	ShareMode       string
	Timeout         int64 // nanoseconds
	IssuedAt        int64 // UnixNano, UTC
	LastRefreshedAt int64 // UnixNano, UTC
	StateToken      string
}

// Store opens transactions over the active-lock set.
type Store interface {
	// Begin opens a new transaction. The transaction must be either
	// committed or dropped (discarded) by the caller; dropping without
	// committing must leave the store's persisted state unchanged.
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction is a read-mutate-commit unit over the active-lock set.
// Every operation is fallible and must respect ctx cancellation.
type Transaction interface {
	// GetActiveLocks returns every lock currently staged in this
	// transaction, including this transaction's own uncommitted writes
	// (read-your-writes).
	GetActiveLocks(ctx context.Context) ([]Lock, error)

	// Add inserts lock. It returns false, without error, if a lock with
	// the same StateToken is already present.
	Add(ctx context.Context, lock Lock) (bool, error)

	// Update replaces the lock with the same StateToken. It returns
	// true if an existing record was replaced, false if none existed
	// (in which case the lock was inserted fresh).
	Update(ctx context.Context, lock Lock) (bool, error)

	// Remove deletes the lock with the given token. It returns true if
	// a lock was present and removed.
	Remove(ctx context.Context, stateToken string) (bool, error)

	// Get fetches the lock with the given token, if any.
	Get(ctx context.Context, stateToken string) (Lock, bool, error)

	// Commit atomically publishes every mutation made against this
	// transaction. After Commit returns successfully, every subsequent
	// transaction from the same Store observes the effect.
	Commit(ctx context.Context) error
}
