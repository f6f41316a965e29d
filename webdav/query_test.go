package webdav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffectedLocksOrdersParentReferenceChild(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	parent, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: true, ShareMode: ShareShared, Timeout: time.Minute})
	require.NoError(t, err)
	ref, err := m.Lock(ctx, LockRequest{Path: "/a/b/", Recursive: false, ShareMode: ShareShared, Timeout: time.Minute})
	require.NoError(t, err)
	child, err := m.Lock(ctx, LockRequest{Path: "/a/b/c", Recursive: false, ShareMode: ShareShared, Timeout: time.Minute})
	require.NoError(t, err)
	_ = child

	affected, err := m.AffectedLocks(ctx, "/a/b/", true, true)
	require.NoError(t, err)
	require.Len(t, affected, 3)
	assert.Equal(t, parent.Lock.StateToken(), affected[0].StateToken())
	assert.Equal(t, ref.Lock.StateToken(), affected[1].StateToken())
	assert.Equal(t, child.Lock.StateToken(), affected[2].StateToken())
}

func TestActiveLocksReturnsEveryCommittedLock(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	locks, err := m.ActiveLocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)

	_, err = m.Lock(ctx, LockRequest{Path: "/x/", Recursive: false, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)

	locks, err = m.ActiveLocks(ctx)
	require.NoError(t, err)
	assert.Len(t, locks, 1)
}
