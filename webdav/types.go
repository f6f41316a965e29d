package webdav

import (
	"time"

	"github.com/rfielding/davlock/internal/conflict"
	"github.com/rfielding/davlock/internal/events"
	"github.com/rfielding/davlock/internal/fstag"
	"github.com/rfielding/davlock/internal/ifheader"
)

// FileSystem is the narrow outbound interface the lock core consumes
// when it needs a resource's entity tag (§6). It is deliberately not the
// full read/write file system the HTTP handler layer needs. See
// internal/fstag's package doc for why that narrowing is itself a
// documented design decision, not a dropped feature.
type FileSystem = fstag.FileSystem

// EntityTag is an opaque version marker for a resource, supplied by the
// file system.
type EntityTag = fstag.EntityTag

// ErrMissing is returned by a FileSystem when the named resource does
// not exist.
var ErrMissing = fstag.ErrMissing

// IfCondition is a single parsed "[Not] (state-token-uri | entity-tag)"
// term (§4.D).
type IfCondition = ifheader.Condition

// IfHeaderList is one parenthesized list of IfConditions, optionally
// tagged with the resource path it applies to.
type IfHeaderList = ifheader.List

// IfHeader is the full parsed form of a client If header: a set of
// IfHeaderLists, any of which may satisfy the header.
type IfHeader = ifheader.Header

// ParseIfHeader parses the raw value of an HTTP If header (without the
// "If:" prefix) per RFC 4918 §10.4.
func ParseIfHeader(raw string) (IfHeader, error) {
	h, err := ifheader.ParseHeader(raw)
	if err != nil {
		return IfHeader{}, wrapProtocolError(err)
	}
	return h, nil
}

func wrapProtocolError(err error) error {
	return &protocolError{err: err}
}

type protocolError struct{ err error }

func (p *protocolError) Error() string { return p.err.Error() }
func (p *protocolError) Unwrap() error { return ErrInvalidIfHeader }

// LockStatus groups the locks found around a query path into reference,
// parent and child buckets (§3).
type LockStatus = conflict.Status[ActiveLock]

// PathInfo is a transient, per-path bundle: the locks at/above the path,
// a token-keyed index into them, and fields for an optionally-fetched
// entity tag (§3). It is built fresh for each If-header list evaluated
// during refresh and implicit-acquire (§4.F). newPathInfo leaves
// EntityTag and HasEntityTag unset; refresh and implicit-acquire keep the
// fetched tag in a local variable instead.
type PathInfo struct {
	Locks        []ActiveLock
	ByToken      map[string]ActiveLock
	EntityTag    EntityTag
	HasEntityTag bool
}

// TokenSet derives the {state_token: present} map the If-header
// evaluator's Matches expects from ByToken.
func (p PathInfo) TokenSet() map[string]bool {
	tokens := make(map[string]bool, len(p.ByToken))
	for tok := range p.ByToken {
		tokens[tok] = true
	}
	return tokens
}

// newPathInfo indexes locks by state token.
func newPathInfo(locks []ActiveLock) PathInfo {
	byToken := make(map[string]ActiveLock, len(locks))
	for _, l := range locks {
		byToken[l.StateToken()] = l
	}
	return PathInfo{Locks: locks, ByToken: byToken}
}

// LockRequest is the input to Lock (§4.F Acquire).
type LockRequest struct {
	Path       string
	Recursive  bool
	Owner      string
	AccessType LockAccessType
	ShareMode  LockShareMode
	Timeout    time.Duration
	// Href is the client-visible href to preserve verbatim in the
	// resulting ActiveLock. It defaults to Path when empty.
	Href string
}

// LockResultKind discriminates the two outcomes of an acquire attempt.
type LockResultKind int

const (
	LockSucceeded LockResultKind = iota
	LockConflicted
)

// LockResult is the tagged-union result of Lock: either Lock is valid
// (Kind == LockSucceeded) or Conflict is valid (Kind == LockConflicted).
type LockResult struct {
	Kind     LockResultKind
	Lock     ActiveLock
	Conflict LockStatus
}

// ImplicitLockKind discriminates LockImplicit's three outcomes (§4.F
// Implicit acquire): freshly-acquired, via-existing and conflict. There
// is no separate "none" kind; when no If list applies, LockImplicit
// falls through to a fresh acquire.
type ImplicitLockKind int

const (
	// ImplicitFresh means a brand-new lock was created on the caller's
	// behalf (flagged implicit).
	ImplicitFresh ImplicitLockKind = iota
	// ImplicitViaExisting means no new lock was created: the client's
	// own If header already named a sufficient lock.
	ImplicitViaExisting
	// ImplicitConflict means either some If list found relevant active
	// locks but none of them satisfied it, or the fresh acquire's own
	// conflict check found blocking locks.
	ImplicitConflict
)

// ImplicitLock is the result of LockImplicit.
type ImplicitLock struct {
	Kind ImplicitLockKind
	// Lock is valid when Kind == ImplicitFresh.
	Lock ActiveLock
	// ExistingLocks is valid when Kind == ImplicitViaExisting: the
	// locks whose tokens satisfied the successful list's non-negated
	// token conditions.
	ExistingLocks []ActiveLock
	// Conflict is valid when Kind == ImplicitConflict.
	Conflict LockStatus
}

// LockRefreshResult is the result of RefreshWithIf: Refreshed holds
// every successfully refreshed lock (possibly empty); FailedHrefs holds
// the relative-href of every tagged list that could not be matched to
// an active lock. When Refreshed is empty, RefreshWithIf also returns a
// non-nil error wrapping ErrNoSuchLock (the "lock-token-matches-request-uri"
// precondition code of §7).
type LockRefreshResult struct {
	Refreshed   []ActiveLock
	FailedHrefs []string
}

// ReleaseStatus is the outcome of Release (§4.F Release, §6).
type ReleaseStatus int

const (
	ReleaseSuccess ReleaseStatus = iota
	ReleaseNoLock
	ReleaseInvalidLockRange
)

// EventKind distinguishes LockAdded from LockReleased notifications.
type EventKind = events.Kind

const (
	LockAdded    = events.LockAdded
	LockReleased = events.LockReleased
)

// Event is a single lifecycle notification delivered after commit
// (§4.I).
type Event struct {
	Kind EventKind
	Lock ActiveLock
}
