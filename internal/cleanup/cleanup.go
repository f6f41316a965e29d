// Package cleanup implements the expiration timer set described in
// §4.G: a priority queue keyed by expiry, serviced by a single
// background goroutine that calls back into the owning lock manager to
// release whichever lock's deadline has passed.
//
// The queue is a container/heap min-heap (idiomatic Go for a priority
// queue; no third-party priority-queue implementation appears anywhere
// in the example pack, so it is built directly on the standard library,
// see DESIGN.md). The actor's
// own add/remove traffic is exchanged as messages over channels, the
// way omeyang-XKit's xrun.Group coordinates goroutine lifecycles through
// context and channels rather than shared mutable state.
package cleanup

import (
	"container/heap"
	"context"
	"time"
)

// Releaser is called back by the Actor when a lock's deadline has
// passed. Implementations must tolerate being called for a token that
// was already released through some other path (e.g. a racing client
// Unlock) and simply no-op.
type Releaser interface {
	ReleaseExpired(ctx context.Context, stateToken string)
}

// entry is one scheduled deadline.
type entry struct {
	stateToken string
	expiresAt  time.Time
	index      int
}

// timerHeap is a container/heap.Interface ordered by the earliest
// expiresAt.
type timerHeap []*entry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type addMsg struct {
	stateToken string
	expiresAt  time.Time
}

type removeMsg struct {
	stateToken string
}

// Actor owns the expiration timer set and the single goroutine that
// sleeps until the earliest deadline. Add and Remove are idempotent and
// safe to call from any goroutine; they only enqueue a message, never
// touch the heap directly.
type Actor struct {
	releaser Releaser
	now      func() time.Time
	// tolerance bounds clock skew between the rounding clock that
	// stamped expiresAt and this actor's own wall clock: on each wake
	// the actor re-checks rather than trusting the timer fired exactly
	// on time.
	tolerance time.Duration

	adds    chan addMsg
	removes chan removeMsg
	wake    chan struct{}
}

// NewActor builds an Actor. now defaults to time.Now when nil.
func NewActor(releaser Releaser, now func() time.Time, tolerance time.Duration) *Actor {
	if now == nil {
		now = time.Now
	}
	return &Actor{
		releaser:  releaser,
		now:       now,
		tolerance: tolerance,
		adds:      make(chan addMsg, 64),
		removes:   make(chan removeMsg, 64),
		wake:      make(chan struct{}, 1),
	}
}

// Add (re-)schedules stateToken to expire at expiresAt. Calling Add again
// for a token already scheduled replaces its deadline (used by refresh).
func (a *Actor) Add(stateToken string, expiresAt time.Time) {
	select {
	case a.adds <- addMsg{stateToken: stateToken, expiresAt: expiresAt}:
	default:
		// The add queue is deep enough in practice (64) that a full
		// buffer means Run is not draining; block rather than silently
		// drop a deadline.
		a.adds <- addMsg{stateToken: stateToken, expiresAt: expiresAt}
	}
	a.nudge()
}

// Remove cancels stateToken's scheduled expiration, if any. It is a
// no-op if the token is not scheduled (idempotent).
func (a *Actor) Remove(stateToken string) {
	select {
	case a.removes <- removeMsg{stateToken: stateToken}:
	default:
		a.removes <- removeMsg{stateToken: stateToken}
	}
	a.nudge()
}

func (a *Actor) nudge() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run drives the actor until ctx is done. It is meant to be launched
// under an errgroup.Group (see webdav.manager), which is what makes its
// shutdown cooperative with the rest of the manager's background work.
func (a *Actor) Run(ctx context.Context) error {
	h := &timerHeap{}
	byToken := make(map[string]*entry)

	heap.Init(h)

	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if h.Len() > 0 {
			d := (*h)[0].expiresAt.Sub(a.now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case msg := <-a.adds:
			if timer != nil {
				timer.Stop()
			}
			applyAdd(h, byToken, msg)

		case msg := <-a.removes:
			if timer != nil {
				timer.Stop()
			}
			applyRemove(h, byToken, msg.stateToken)

		case <-a.wake:
			if timer != nil {
				timer.Stop()
			}
			// Loop around: adds/removes are drained above; wake just
			// forces a re-evaluation of the next deadline.

		case <-timerC:
			a.fireDue(ctx, h, byToken)
		}
	}
}

// fireDue releases every entry whose deadline is at or before now (plus
// the skew tolerance), re-checking on wake per §4.G.
func (a *Actor) fireDue(ctx context.Context, h *timerHeap, byToken map[string]*entry) {
	cutoff := a.now().Add(a.tolerance)
	for h.Len() > 0 && !(*h)[0].expiresAt.After(cutoff) {
		e := heap.Pop(h).(*entry)
		delete(byToken, e.stateToken)
		a.releaser.ReleaseExpired(ctx, e.stateToken)
	}
}

func applyAdd(h *timerHeap, byToken map[string]*entry, msg addMsg) {
	if msg.stateToken == "" {
		return
	}
	if existing, ok := byToken[msg.stateToken]; ok {
		existing.expiresAt = msg.expiresAt
		heap.Fix(h, existing.index)
		return
	}
	e := &entry{stateToken: msg.stateToken, expiresAt: msg.expiresAt}
	heap.Push(h, e)
	byToken[msg.stateToken] = e
}

func applyRemove(h *timerHeap, byToken map[string]*entry, stateToken string) {
	e, ok := byToken[stateToken]
	if !ok {
		return
	}
	heap.Remove(h, e.index)
	delete(byToken, stateToken)
}
