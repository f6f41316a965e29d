package webdav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario1_AcquireOnEmptyStoreSucceeds(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newTestManager(start)
	defer m.Close()

	result, err := m.Lock(ctx, LockRequest{
		Path:      "/a/",
		Recursive: true,
		ShareMode: ShareExclusive,
		Timeout:   60 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, LockSucceeded, result.Kind)

	locks, err := m.ActiveLocks(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "/a/", locks[0].Path())
	assert.Equal(t, start.Add(60*time.Second), locks[0].ExpiresAt())
}

func TestScenario2_Depth0ExclusiveConflictsWithRecursiveParent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	_, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: true, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)

	result, err := m.Lock(ctx, LockRequest{Path: "/a/b", Recursive: false, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)
	require.Equal(t, LockConflicted, result.Kind)
	require.Len(t, result.Conflict.Parent, 1)
	assert.Equal(t, "/a/", result.Conflict.Parent[0].Path())
}

func TestScenario3_SharedRequestConflictsWithExistingExclusive(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	_, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: true, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)

	result, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: false, ShareMode: ShareShared, Timeout: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, LockConflicted, result.Kind)
}

func TestScenario4_RefreshExtendsTimeoutAndUpdatesCleanupDeadline(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m, mc := newTestManager(start)
	defer m.Close()

	acquired, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: false, ShareMode: ShareExclusive, Timeout: 60 * time.Second})
	require.NoError(t, err)
	token := acquired.Lock.StateToken()

	mc.Advance(10 * time.Second)

	header, err := ParseIfHeader("</a/> (<" + token + ">)")
	require.NoError(t, err)

	result, err := m.RefreshWithIf(ctx, nil, header, 120*time.Second)
	require.NoError(t, err)
	require.Len(t, result.Refreshed, 1)

	refreshed := result.Refreshed[0]
	assert.Equal(t, token, refreshed.StateToken())
	assert.Equal(t, 120*time.Second, refreshed.Timeout())
	assert.True(t, refreshed.LastRefreshedAt().After(acquired.Lock.IssuedAt()))
	// The deadline RefreshWithIf re-arms the cleanup actor with.
	assert.Equal(t, start.Add(130*time.Second), refreshed.ExpiresAt())
}

func TestScenario5_ReleaseEmptiesStoreAndPublishesEvent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	eventCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := m.Events(eventCtx)

	acquired, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: false, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)
	token := acquired.Lock.StateToken()

	<-events // LockAdded

	status, err := m.Release(ctx, "/a/", token)
	require.NoError(t, err)
	assert.Equal(t, ReleaseSuccess, status)

	ev := <-events
	assert.Equal(t, LockReleased, ev.Kind)
	assert.Equal(t, token, ev.Lock.StateToken())

	locks, err := m.ActiveLocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestScenario6_ImplicitAcquireResolvesViaExistingLock(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	acquired, err := m.Lock(ctx, LockRequest{Path: "/a/", Recursive: true, ShareMode: ShareExclusive, Timeout: time.Minute})
	require.NoError(t, err)
	token := acquired.Lock.StateToken()

	fs := stubFileSystem{tags: map[string]EntityTag{"/a/b": `"v1"`}}
	header, err := ParseIfHeader(`</a/b> (<` + token + `> ["v1"])`)
	require.NoError(t, err)

	result, err := m.LockImplicit(ctx, fs, []IfHeader{header}, LockRequest{
		Path:      "/a/b",
		Recursive: false,
		ShareMode: ShareExclusive,
		Timeout:   time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, ImplicitViaExisting, result.Kind)
	require.Len(t, result.ExistingLocks, 1)
	assert.Equal(t, token, result.ExistingLocks[0].StateToken())

	locks, err := m.ActiveLocks(ctx)
	require.NoError(t, err)
	assert.Len(t, locks, 1, "no new lock should have been created")
}
