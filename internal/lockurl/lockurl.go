// Package lockurl canonicalizes lock paths against a virtual base URL and
// computes the four-valued relation between two scoped URLs that the lock
// manager needs to decide parent/child/reference interference.
//
// The path-cleaning half of this is adapted from the teacher repository's
// SlashClean helper (webdav/utilities.go in github.com/rfielding/webdev):
// every directory is made to end in '/' so that prefix comparison at
// segment boundaries is correct at the root of each subtree.
package lockurl

import (
	"net/url"
	"path"
	"strings"
)

// base is the virtual host every lock path is resolved against. Only its
// path component is ever inspected; the scheme/host exist so that
// net/url's path-handling semantics (escaping, segment boundaries) apply
// uniformly regardless of how a caller spells a path.
const base = "http://localhost"

// Relation is the result of comparing two scoped URLs.
type Relation int

const (
	// NoMatch means the two scopes do not overlap at all.
	NoMatch Relation = iota
	// Reference means the two URLs are identical after normalization.
	Reference
	// LeftIsParent means left is a strict ancestor of right, and left's
	// scope was recursive, so left's lock reaches right.
	LeftIsParent
	// RightIsParent means right is a strict ancestor of left, and
	// right's scope was recursive, so right's lock reaches left.
	RightIsParent
)

// Normalize turns a resource path into its canonical absolute URL string.
// isCollection forces a trailing slash, matching §3's invariant that every
// collection path ends in '/'.
func Normalize(p string, isCollection bool) string {
	clean := slashClean(p)
	if isCollection && !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(base + clean)
	if err != nil {
		// clean is always a valid, already-escaped path produced by
		// path.Clean, so Parse cannot fail here in practice.
		return base + clean
	}
	return u.String()
}

// slashClean is equivalent to, but slightly more defensive than,
// path.Clean("/" + name): it guarantees a leading slash before cleaning so
// that ".." segments cannot walk above the virtual root.
func slashClean(name string) string {
	if name == "" || name[0] != '/' {
		name = "/" + name
	}
	return path.Clean(name)
}

// Compare implements the §4.A algorithm: byte-equality after
// normalization wins first, then strict-prefix-with-recursive-flag in
// each direction, else NoMatch.
func Compare(left string, leftRecursive bool, right string, rightRecursive bool) Relation {
	if left == right {
		return Reference
	}
	if leftRecursive && isStrictBase(left, right) {
		return LeftIsParent
	}
	if rightRecursive && isStrictBase(right, left) {
		return RightIsParent
	}
	return NoMatch
}

// isStrictBase reports whether base is a strict URL-path prefix of target
// at a segment boundary, i.e. base must itself denote a collection
// (trailing '/') and target must be strictly longer.
func isStrictBase(base, target string) bool {
	if !strings.HasSuffix(base, "/") {
		return false
	}
	if len(target) <= len(base) {
		return false
	}
	return strings.HasPrefix(target, base)
}
