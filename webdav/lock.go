// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webdav is the locking core of a WebDAV server: it grants,
// refreshes, releases, validates and enumerates advisory locks over a
// hierarchical resource tree (RFC 4918 §§6-10), including evaluation of
// conditional If headers against the active lock set.
//
// LockSystem, LockDetails and Condition below are carried over from the
// teacher repository's golang.org/x/net/webdav-derived declarations
// (github.com/rfielding/webdev, webdav/lock.go); everything else in this
// package is the implementation that repository's fs/example.go already
// called (NewMemLS()) without ever shipping.
package webdav

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConfirmationFailed is returned by a LockSystem's Confirm method.
	ErrConfirmationFailed = errors.New("webdav: confirmation failed")
	// ErrForbidden is returned by a LockSystem's Unlock method.
	ErrForbidden = errors.New("webdav: forbidden")
	// ErrLocked is returned by a LockSystem's Create, Refresh and Unlock methods.
	ErrLocked = errors.New("webdav: locked")
	// ErrNoSuchLock is returned by a LockSystem's Refresh and Unlock methods.
	ErrNoSuchLock = errors.New("webdav: no such lock")

	// ErrInvalidLockRange names the outcome where a release path does
	// not reference-match the lock's own recursive scope (§4.F Release
	// step 2, preserving the RFC 4918 §9.11.1 behavior §9 calls out as
	// worth a targeted test). Release itself reports that outcome as
	// ReleaseInvalidLockRange with a nil error; no method of Manager
	// returns this sentinel.
	ErrInvalidLockRange = errors.New("webdav: invalid lock range")
	// ErrInvalidIfHeader is returned when an If header does not parse.
	ErrInvalidIfHeader = errors.New("webdav: invalid If header")
	// ErrInvalidLockInfo is returned when LockDetails fails its own
	// invariants (§3): empty path, non-positive timeout, or similar.
	ErrInvalidLockInfo = errors.New("webdav: invalid lock info")
	// ErrInvalidLockToken names a supplied token that does not name a
	// currently active lock. No method of Manager returns it: an unknown
	// token is reported as ErrNoSuchLock (Refresh, Unlock, RefreshWithIf)
	// or as ReleaseNoLock (Release).
	ErrInvalidLockToken = errors.New("webdav: invalid lock token")
	// ErrCancelled is returned when ctx is done at a suspension point.
	ErrCancelled = errors.New("webdav: cancelled")
	// ErrBackend wraps a failure surfaced by the Store/Transaction
	// interface; callers may retry.
	ErrBackend = errors.New("webdav: backend failure")
)

// Condition can match a WebDAV resource, based on a token or ETag.
// Exactly one of Token and ETag should be non-empty.
type Condition struct {
	Not   bool
	Token string
	ETag  string
}

// LockSystem manages access to a collection of named resources. The elements
// in a lock name are separated by slash ('/', U+002F) characters, regardless
// of host operating system convention.
type LockSystem interface {
	// Confirm confirms that the caller can claim all of the locks specified by
	// the given conditions, and that holding the union of all of those locks
	// gives exclusive access to all of the named resources. Up to two resources
	// can be named. Empty names are ignored.
	//
	// Exactly one of release and err will be non-nil. If release is non-nil,
	// all of the requested locks are held until release is called. Calling
	// release does not unlock the lock, in the WebDAV UNLOCK sense, but once
	// Confirm has confirmed that a lock claim is valid, that lock cannot be
	// Confirmed again until it has been released.
	//
	// If Confirm returns ErrConfirmationFailed then the Handler will continue
	// to try any other set of locks presented (a WebDAV HTTP request can
	// present more than one set of locks). If it returns any other non-nil
	// error, the Handler will write a "500 Internal Server Error" HTTP status.
	Confirm(now time.Time, name0, name1 string, conditions ...Condition) (release func(), err error)

	// Create creates a lock with the given depth, duration, owner and root
	// (name). The depth will either be negative (meaning infinite) or zero.
	//
	// If Create returns ErrLocked then the Handler will write a "423 Locked"
	// HTTP status. If it returns any other non-nil error, the Handler will
	// write a "500 Internal Server Error" HTTP status.
	//
	// See http://www.webdav.org/specs/rfc4918.html#rfc.section.9.10.6 for
	// when to use each error.
	//
	// The token returned identifies the created lock. It should be an absolute
	// URI as defined by RFC 3986, Section 4.3. In particular, it should not
	// contain whitespace.
	Create(now time.Time, details LockDetails) (token string, err error)

	// Refresh refreshes the lock with the given token.
	//
	// If Refresh returns ErrLocked then the Handler will write a "423 Locked"
	// HTTP Status. If Refresh returns ErrNoSuchLock then the Handler will write
	// a "412 Precondition Failed" HTTP Status. If it returns any other non-nil
	// error, the Handler will write a "500 Internal Server Error" HTTP status.
	//
	// See http://www.webdav.org/specs/rfc4918.html#rfc.section.9.10.6 for
	// when to use each error.
	Refresh(now time.Time, token string, duration time.Duration) (LockDetails, error)

	// Unlock unlocks the lock with the given token.
	//
	// If Unlock returns ErrForbidden then the Handler will write a "403
	// Forbidden" HTTP Status. If Unlock returns ErrLocked then the Handler
	// will write a "423 Locked" HTTP status. If Unlock returns ErrNoSuchLock
	// then the Handler will write a "409 Conflict" HTTP Status. If it returns
	// any other non-nil error, the Handler will write a "500 Internal Server
	// Error" HTTP status.
	//
	// See http://www.webdav.org/specs/rfc4918.html#rfc.section.9.11.1 for
	// when to use each error.
	Unlock(now time.Time, token string) error
}

// LockDetails are a lock's metadata.
type LockDetails struct {
	// Root is the root resource name being locked. For a zero-depth lock, the
	// root is the only resource being locked.
	Root string
	// Duration is the lock timeout. A negative duration means infinite.
	Duration time.Duration
	// OwnerXML is the verbatim <owner> XML given in a LOCK HTTP request.
	//
	// TODO: does the "verbatim" nature play well with XML namespaces?
	// Does the OwnerXML field need to have more structure? See
	// https://codereview.appspot.com/175140043/#msg2
	OwnerXML string
	// ZeroDepth is whether the lock has zero depth. If it does not have zero
	// depth, it has infinite depth.
	ZeroDepth bool
	// ShareMode is the lock's share semantics. The zero value is
	// ShareExclusive, matching RFC 4918's default and the fact that the
	// original LockDetails this type is carried over from predates
	// shared locks entirely.
	ShareMode LockShareMode
}

// ExtendedLockSystem is LockSystem plus the richer, enumeration-capable
// surface §4.F and §6 name (lock_implicit, refresh-with-If, release by
// path+token, get_locks, get_affected_locks). A handler that only needs
// RFC 4918's four verbs can depend on the narrower LockSystem; one that
// needs enumeration or implicit-lock handling depends on this instead.
type ExtendedLockSystem interface {
	LockSystem

	// Lock attempts to acquire the lock described by req. See §4.F
	// Acquire.
	Lock(ctx context.Context, req LockRequest) (LockResult, error)

	// LockImplicit decides, from a set of parsed If headers plus a lock
	// requirement, whether the client's existing lock tokens already
	// suffice or whether a fresh lock must be created. See §4.F
	// Implicit acquire.
	LockImplicit(ctx context.Context, fs FileSystem, ifHeaders []IfHeader, req LockRequest) (ImplicitLock, error)

	// RefreshWithIf refreshes every lock named by an If header whose
	// lists require a state token. See §4.F Refresh.
	RefreshWithIf(ctx context.Context, fs FileSystem, header IfHeader, newTimeout time.Duration) (LockRefreshResult, error)

	// Release releases the lock identified by stateToken, provided path
	// reference-matches its scope. See §4.F Release.
	Release(ctx context.Context, path, stateToken string) (ReleaseStatus, error)

	// ActiveLocks returns every currently committed active lock.
	ActiveLocks(ctx context.Context) ([]ActiveLock, error)

	// AffectedLocks computes Find over the current lock set and returns
	// it flattened in parent, reference, child order.
	AffectedLocks(ctx context.Context, path string, findChildren, findParents bool) ([]ActiveLock, error)

	// Events returns a channel of lifecycle notifications
	// (LockAdded/LockReleased), delivered after commit. The channel is
	// closed when ctx is done.
	Events(ctx context.Context) <-chan Event
}
