package webdav

import (
	"fmt"
	"strings"
	"time"
)

// LockShareMode is the closed enumeration §3/§4.B names: a lock is
// either exclusive or shared.
type LockShareMode string

const (
	ShareExclusive LockShareMode = "exclusive"
	ShareShared    LockShareMode = "shared"
)

// ParseLockShareMode accepts the RFC keyword case-insensitively. An
// empty string is treated as ShareExclusive, RFC 4918's default.
func ParseLockShareMode(s string) (LockShareMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclusive":
		return ShareExclusive, nil
	case "shared":
		return ShareShared, nil
	default:
		return "", fmt.Errorf("%w: unknown share mode %q", ErrInvalidLockInfo, s)
	}
}

// LockAccessType is the closed enumeration of lock access types. RFC
// 4918 only defines "write"; §1 names "lock types beyond write" as a
// non-goal, so this type exists to make that boundary explicit rather
// than to leave room for more values.
type LockAccessType string

const (
	AccessWrite LockAccessType = "write"
)

// ParseLockAccessType accepts the RFC keyword case-insensitively.
func ParseLockAccessType(s string) (LockAccessType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "write":
		return AccessWrite, nil
	default:
		return "", fmt.Errorf("%w: unknown access type %q", ErrInvalidLockInfo, s)
	}
}

// ActiveLock is an immutable record of a currently held lock. It is
// never mutated in place; a refresh produces a new ActiveLock sharing
// the same StateToken (§3's invariant).
type ActiveLock struct {
	path            string
	href            string
	recursive       bool
	owner           string
	accessType      LockAccessType
	shareMode       LockShareMode
	timeout         time.Duration
	issuedAt        time.Time
	lastRefreshedAt time.Time
	stateToken      string
}

// Path is the canonicalized absolute path of the locked resource.
func (l ActiveLock) Path() string { return l.path }

// Href is the client-visible href, preserved verbatim for responses.
func (l ActiveLock) Href() string { return l.href }

// Recursive is true for a depth-infinity lock, false for depth-0.
func (l ActiveLock) Recursive() bool { return l.recursive }

// Owner is the opaque XML fragment the client supplied as principal.
func (l ActiveLock) Owner() string { return l.owner }

// AccessType is always AccessWrite for now (§1 non-goal).
func (l ActiveLock) AccessType() LockAccessType { return l.accessType }

// ShareMode is exclusive or shared.
func (l ActiveLock) ShareMode() LockShareMode { return l.shareMode }

// Share implements the Share() string method conflict.Conflicting needs.
func (l ActiveLock) Share() string { return string(l.shareMode) }

// Timeout is the (rounded) lock duration.
func (l ActiveLock) Timeout() time.Duration { return l.timeout }

// IssuedAt is the (rounded) UTC instant the lock was first created.
func (l ActiveLock) IssuedAt() time.Time { return l.issuedAt }

// LastRefreshedAt equals IssuedAt until the first refresh.
func (l ActiveLock) LastRefreshedAt() time.Time { return l.lastRefreshedAt }

// StateToken is the globally unique opaque token identifying this lock;
// it never changes across a refresh.
func (l ActiveLock) StateToken() string { return l.stateToken }

// ExpiresAt is the derived deadline: LastRefreshedAt + Timeout. Every
// ActiveLock carries a strictly positive Timeout (newActiveLock's
// invariant); RFC 4918's "Infinite" is represented at the LockSystem
// boundary by lockshim.go's infiniteTimeout sentinel rather than by a
// special zero-time deadline here.
func (l ActiveLock) ExpiresAt() time.Time {
	return l.lastRefreshedAt.Add(l.timeout)
}

// newActiveLockParams bundles the fields needed to construct an
// ActiveLock so the constructor's invariant checks have everything in
// one place.
type newActiveLockParams struct {
	path            string
	href            string
	recursive       bool
	owner           string
	accessType      LockAccessType
	shareMode       LockShareMode
	timeout         time.Duration
	issuedAt        time.Time
	lastRefreshedAt time.Time
	stateToken      string
}

// newActiveLock enforces §3's invariants: non-empty path, every
// collection path ends in '/', issuedAt <= lastRefreshedAt, a positive
// timeout, and a non-empty state token.
func newActiveLock(p newActiveLockParams) (ActiveLock, error) {
	if p.path == "" {
		return ActiveLock{}, fmt.Errorf("%w: empty path", ErrInvalidLockInfo)
	}
	if p.stateToken == "" {
		return ActiveLock{}, fmt.Errorf("%w: empty state token", ErrInvalidLockInfo)
	}
	if p.issuedAt.After(p.lastRefreshedAt) {
		return ActiveLock{}, fmt.Errorf("%w: issuedAt after lastRefreshedAt", ErrInvalidLockInfo)
	}
	if p.timeout <= 0 {
		return ActiveLock{}, fmt.Errorf("%w: non-positive timeout", ErrInvalidLockInfo)
	}
	if p.accessType == "" {
		p.accessType = AccessWrite
	}
	if p.shareMode == "" {
		p.shareMode = ShareExclusive
	}
	return ActiveLock{
		path:            p.path,
		href:            p.href,
		recursive:       p.recursive,
		owner:           p.owner,
		accessType:      p.accessType,
		shareMode:       p.shareMode,
		timeout:         p.timeout,
		issuedAt:        p.issuedAt,
		lastRefreshedAt: p.lastRefreshedAt,
		stateToken:      p.stateToken,
	}, nil
}

// withRefresh returns a new ActiveLock sharing this one's identity
// fields (path, href, recursive, owner, accessType, shareMode,
// stateToken, issuedAt) but with LastRefreshedAt and Timeout updated,
// per §3's "ActiveLock is never mutated in place; refresh produces a new
// record with the same state_token."
func (l ActiveLock) withRefresh(lastRefreshedAt time.Time, timeout time.Duration) ActiveLock {
	l.lastRefreshedAt = lastRefreshedAt
	l.timeout = timeout
	return l
}
