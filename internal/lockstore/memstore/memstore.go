// Package memstore is the reference in-memory implementation of
// lockstore.Store. It is guarded by a single mutex, the way
// ARM-software-golang-utils' lockMap guards its per-key mutex table, and
// stages each transaction's writes separately from its read snapshot so
// that only the transaction's own mutations (never a stale snapshot of
// someone else's concurrently committed state) are ever published.
package memstore

import (
	"context"
	"sync"

	"github.com/rfielding/davlock/internal/lockstore"
)

// Store is a process-local, mutex-guarded lockstore.Store. It is the only
// backend this module ships; any other backend (SQL, etcd, ...) satisfies
// the same lockstore.Store interface from outside this package.
type Store struct {
	mu      sync.Mutex
	byToken map[string]lockstore.Lock
	// commitMu serializes Commit so that two transactions racing to
	// mutate overlapping tokens observe each other in commit order,
	// rather than interleaving partial writes.
	commitMu sync.Mutex
}

// New returns an empty Store.
func New() *Store {
	return &Store{byToken: make(map[string]lockstore.Lock)}
}

// Begin opens a transaction snapshotting the currently committed state.
func (s *Store) Begin(ctx context.Context) (lockstore.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	snapshot := make(map[string]lockstore.Lock, len(s.byToken))
	for k, v := range s.byToken {
		snapshot[k] = v
	}
	s.mu.Unlock()

	return &txn{
		store:    s,
		snapshot: snapshot,
		writes:   make(map[string]lockstore.Lock),
		removed:  make(map[string]bool),
	}, nil
}

// txn reads against a point-in-time snapshot overlaid with its own
// uncommitted writes (read-your-writes). Nothing is published to the
// store until Commit succeeds, and only this transaction's own writes and
// removals are ever published, never the baseline snapshot.
type txn struct {
	store    *Store
	snapshot map[string]lockstore.Lock
	writes   map[string]lockstore.Lock
	removed  map[string]bool
	done     bool
}

func (t *txn) GetActiveLocks(ctx context.Context) ([]lockstore.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	view := make(map[string]lockstore.Lock, len(t.snapshot))
	for k, v := range t.snapshot {
		view[k] = v
	}
	for k, v := range t.writes {
		view[k] = v
	}
	for k := range t.removed {
		delete(view, k)
	}
	out := make([]lockstore.Lock, 0, len(view))
	for _, l := range view {
		out = append(out, l)
	}
	return out, nil
}

func (t *txn) Add(ctx context.Context, lock lockstore.Lock) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, exists := t.lookup(lock.StateToken); exists {
		return false, nil
	}
	t.writes[lock.StateToken] = lock
	delete(t.removed, lock.StateToken)
	return true, nil
}

func (t *txn) Update(ctx context.Context, lock lockstore.Lock) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, existed := t.lookup(lock.StateToken)
	t.writes[lock.StateToken] = lock
	delete(t.removed, lock.StateToken)
	return existed, nil
}

func (t *txn) Remove(ctx context.Context, stateToken string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, existed := t.lookup(stateToken)
	if existed {
		delete(t.writes, stateToken)
		t.removed[stateToken] = true
	}
	return existed, nil
}

func (t *txn) Get(ctx context.Context, stateToken string) (lockstore.Lock, bool, error) {
	if err := ctx.Err(); err != nil {
		return lockstore.Lock{}, false, err
	}
	l, ok := t.lookup(stateToken)
	return l, ok, nil
}

func (t *txn) lookup(stateToken string) (lockstore.Lock, bool) {
	if t.removed[stateToken] {
		return lockstore.Lock{}, false
	}
	if l, ok := t.writes[stateToken]; ok {
		return l, true
	}
	l, ok := t.snapshot[stateToken]
	return l, ok
}

func (t *txn) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.done {
		return nil
	}
	t.store.commitMu.Lock()
	defer t.store.commitMu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for token := range t.removed {
		delete(t.store.byToken, token)
	}
	for token, lock := range t.writes {
		t.store.byToken[token] = lock
	}
	t.done = true
	return nil
}
