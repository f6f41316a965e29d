package webdav

import (
	"context"
	"strconv"
	"time"

	"github.com/rfielding/davlock/internal/clock"
	"github.com/rfielding/davlock/internal/lockstore"
	"github.com/rfielding/davlock/internal/lockstore/memstore"
)

// newTestManager builds a Manager over a Manual clock, with a
// predictable, sequential token generator so assertions can name tokens
// directly rather than round-tripping through LockResult.
func newTestManager(start time.Time) (*Manager, *clock.Manual) {
	mc := clock.NewManual(start)
	n := 0
	m := NewMemLS(
		WithClock(mc),
		WithTokenGenerator(func() string {
			n++
			return "urn:uuid:test-token-" + strconv.Itoa(n)
		}),
	)
	return m, mc
}

// stubFileSystem answers Stat from a fixed map of path -> entity tag.
type stubFileSystem struct {
	tags map[string]EntityTag
}

func (s stubFileSystem) Stat(ctx context.Context, name string) (EntityTag, error) {
	tag, ok := s.tags[name]
	if !ok {
		return "", ErrMissing
	}
	return tag, nil
}

// countingStore wraps memstore.Store to record how many transactions
// were opened, confirming WithStore actually routes through a
// caller-supplied backend rather than the default.
type countingStore struct {
	inner  *memstore.Store
	begins int
}

func newCountingStore() *countingStore {
	return &countingStore{inner: memstore.New()}
}

func (c *countingStore) Begin(ctx context.Context) (lockstore.Transaction, error) {
	c.begins++
	return c.inner.Begin(ctx)
}
