package webdav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rfielding/davlock/internal/cleanup"
	"github.com/rfielding/davlock/internal/clock"
	"github.com/rfielding/davlock/internal/events"
	"github.com/rfielding/davlock/internal/lockstore"
	"github.com/rfielding/davlock/internal/lockstore/memstore"
	"golang.org/x/sync/errgroup"
)

// Manager is the lock manager core (§4.F): it orchestrates acquire,
// implicit-acquire, refresh, release and query atop the URL comparator,
// conflict analyzer, If-header evaluator and a backend Transaction, and
// notifies the cleanup actor and event bus after every commit.
//
// Manager implements both LockSystem (the teacher's original RFC-4918
// surface) and ExtendedLockSystem (the enumeration-capable superset
// SPEC_FULL.md §4.F adds).
type Manager struct {
	store lockstore.Store
	clk   clock.Clock
	round clock.Rounding
	newID func() string
	log   *slog.Logger

	bus     *events.Bus
	cleanup *cleanup.Actor

	bg     context.Context
	bgStop context.CancelFunc
	eg     *errgroup.Group

	mu        sync.Mutex
	confirmed map[string]bool // tokens currently held by an un-released Confirm

	// acquireMu serializes the conflict-check-then-add sequence across
	// every acquire path (Lock, acquireImplicitFresh). memstore's Begin
	// snapshots the store without blocking concurrent transactions and
	// its Commit never re-validates against the snapshot, so two
	// concurrent acquires over the same scope would otherwise both see
	// an empty/non-conflicting snapshot and both succeed. Serializing
	// here, the way DeltaRule-DeltaDatabase's MemoryLockManager guards
	// its whole acquire-then-mutate sequence with one mutex, is what
	// makes "no two overlapping locks are both exclusive" actually hold
	// against this backend.
	acquireMu sync.Mutex

	// mutateMu serializes every operation that updates or removes an
	// already-active lock by token (RefreshWithIf, the direct-token
	// Refresh, Release, ReleaseExpired), the same way acquireMu
	// serializes fresh acquires. Without it, a client's RefreshWithIf
	// racing the cleanup actor's ReleaseExpired for the same token could
	// both begin their transaction while the token is still present, and
	// the refresh's later Update/Commit would write the lock straight
	// back after the cleanup actor had already removed it and published
	// LockReleased, resurrecting an expired lock. Holding mutateMu across
	// each operation's entire begin-through-commit sequence guarantees
	// one runs fully to completion before the other even opens its
	// transaction, so whichever commits first wins and the second always
	// observes the first's result.
	mutateMu sync.Mutex
}

var _ LockSystem = (*Manager)(nil)
var _ ExtendedLockSystem = (*Manager)(nil)

// Option configures a Manager, in the functional-options style
// omeyang-XKit's xrun.NewGroup(ctx, opts ...Option) uses.
type Option func(*managerConfig)

type managerConfig struct {
	store             lockstore.Store
	clk               clock.Clock
	round             clock.Rounding
	newID             func() string
	log               *slog.Logger
	eventBufferSize   int
	cleanupTolerance  time.Duration
}

// WithStore supplies a backend Store. Defaults to an in-memory
// memstore.Store (the one reference backend this module ships).
func WithStore(s lockstore.Store) Option {
	return func(c *managerConfig) { c.store = s }
}

// WithClock supplies an abstract clock, for deterministic tests.
func WithClock(clk clock.Clock) Option {
	return func(c *managerConfig) { c.clk = clk }
}

// WithRounding overrides the default one-second rounding policy.
func WithRounding(r clock.Rounding) Option {
	return func(c *managerConfig) { c.round = r }
}

// WithTokenGenerator overrides how fresh state tokens are minted.
// Defaults to uuid.New().URN().
func WithTokenGenerator(f func() string) Option {
	return func(c *managerConfig) { c.newID = f }
}

// WithLogger overrides the structured logger used for diagnostics (not
// the HTTP-layer *log.Logger callback the teacher's Handler.Logger
// field is; this is purely internal, grounded on the way xrun logs
// lifecycle events through log/slog).
func WithLogger(l *slog.Logger) Option {
	return func(c *managerConfig) { c.log = l }
}

// WithEventBufferSize sets each event subscriber's channel buffer.
func WithEventBufferSize(n int) Option {
	return func(c *managerConfig) { c.eventBufferSize = n }
}

// WithCleanupTolerance bounds the clock skew the cleanup actor tolerates
// between its own wake-ups and the rounding clock that stamped a lock's
// expiry (§4.G).
func WithCleanupTolerance(d time.Duration) Option {
	return func(c *managerConfig) { c.cleanupTolerance = d }
}

// NewMemLS builds a Manager. Despite the name (kept for continuity with
// the teacher repository's fs/example.go, which already called
// NewMemLS() before this module existed to implement it), the backend
// defaults to but is not limited to an in-memory store: pass WithStore
// to supply any other lockstore.Store implementation.
func NewMemLS(opts ...Option) *Manager {
	cfg := &managerConfig{
		clk:              clock.System{},
		round:            clock.DefaultRounding,
		newID:            func() string { return uuid.New().URN() },
		log:              slog.Default(),
		eventBufferSize:  16,
		cleanupTolerance: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = memstore.New()
	}

	bg, stop := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(bg)

	m := &Manager{
		store:     cfg.store,
		clk:       cfg.clk,
		round:     cfg.round,
		newID:     cfg.newID,
		log:       cfg.log,
		bus:       events.NewBus(cfg.eventBufferSize),
		bg:        egCtx,
		bgStop:    stop,
		eg:        eg,
		confirmed: make(map[string]bool),
	}
	m.cleanup = cleanup.NewActor(m, cfg.clk.Now, cfg.cleanupTolerance)
	eg.Go(func() error { return m.cleanup.Run(egCtx) })

	return m
}

// Close stops the cleanup actor's background goroutine and releases the
// manager's own resources. It does not touch the backend store, which
// outlives the Manager. A context.Canceled surfacing from the actor's
// own shutdown (caused by bgStop itself) is expected and filtered out,
// the way xrun.Group.Wait distinguishes a deliberate shutdown from a
// genuine service failure.
func (m *Manager) Close() error {
	m.bgStop()
	if err := m.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Events implements ExtendedLockSystem.
func (m *Manager) Events(ctx context.Context) <-chan Event {
	raw := m.bus.Subscribe(ctx)
	out := make(chan Event, cap(raw))
	go func() {
		defer close(out)
		for ev := range raw {
			lock, _ := ev.Payload.(ActiveLock)
			out <- Event{Kind: ev.Kind, Lock: lock}
		}
	}()
	return out
}

func (m *Manager) publish(kind EventKind, lock ActiveLock) {
	m.bus.Publish(events.Event{Kind: kind, Payload: lock})
}

// toStoreLock / fromStoreLock convert between the manager's ActiveLock
// and the backend-neutral lockstore.Lock shape.

func toStoreLock(l ActiveLock) lockstore.Lock {
	return lockstore.Lock{
		Path:            l.path,
		Href:            l.href,
		Recursive:       l.recursive,
		Owner:           l.owner,
		AccessType:      string(l.accessType),
		ShareMode:       string(l.shareMode),
		Timeout:         int64(l.timeout),
		IssuedAt:        l.issuedAt.UnixNano(),
		LastRefreshedAt: l.lastRefreshedAt.UnixNano(),
		StateToken:      l.stateToken,
	}
}

func fromStoreLock(sl lockstore.Lock) ActiveLock {
	return ActiveLock{
		path:            sl.Path,
		href:            sl.Href,
		recursive:       sl.Recursive,
		owner:           sl.Owner,
		accessType:      LockAccessType(sl.AccessType),
		shareMode:       LockShareMode(sl.ShareMode),
		timeout:         time.Duration(sl.Timeout),
		issuedAt:        time.Unix(0, sl.IssuedAt).UTC(),
		lastRefreshedAt: time.Unix(0, sl.LastRefreshedAt).UTC(),
		stateToken:      sl.StateToken,
	}
}

// beginTx opens a transaction, mapping ctx cancellation and backend
// failure to the error sentinels §7 names.
func (m *Manager) beginTx(ctx context.Context) (lockstore.Transaction, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return tx, nil
}

func (m *Manager) commit(ctx context.Context, tx lockstore.Transaction) error {
	if err := tx.Commit(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
