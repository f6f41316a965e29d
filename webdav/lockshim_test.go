package webdav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRefreshUnlockRoundTrip(t *testing.T) {
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	token, err := m.Create(time.Now(), LockDetails{
		Root:      "/a/",
		Duration:  time.Minute,
		OwnerXML:  "<owner>me</owner>",
		ZeroDepth: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	details, err := m.Refresh(time.Now(), token, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, details.Duration)
	assert.Equal(t, "/a/", details.Root)
	assert.True(t, details.ZeroDepth)

	require.NoError(t, m.Unlock(time.Now(), token))

	_, err = m.Refresh(time.Now(), token, time.Minute)
	assert.ErrorIs(t, err, ErrNoSuchLock)
}

func TestCreateConflictReturnsErrLocked(t *testing.T) {
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	_, err := m.Create(time.Now(), LockDetails{Root: "/a/", Duration: time.Minute})
	require.NoError(t, err)

	_, err = m.Create(time.Now(), LockDetails{Root: "/a/", Duration: time.Minute})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestCreateNegativeDurationMeansInfinite(t *testing.T) {
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	token, err := m.Create(time.Now(), LockDetails{Root: "/a/", Duration: -1})
	require.NoError(t, err)

	locks, err := m.ActiveLocks(context.Background())
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, token, locks[0].StateToken())
	assert.True(t, locks[0].Timeout() >= infiniteTimeout-time.Second)
}

func TestUnlockUnknownTokenReturnsErrNoSuchLock(t *testing.T) {
	m, _ := newTestManager(time.Now().UTC())
	defer m.Close()

	err := m.Unlock(time.Now(), "urn:uuid:does-not-exist")
	assert.ErrorIs(t, err, ErrNoSuchLock)
}
