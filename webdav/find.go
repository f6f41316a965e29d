package webdav

import (
	"strings"

	"github.com/rfielding/davlock/internal/lockurl"
)

// isCollectionPath reports whether p denotes a collection, per §3's
// invariant that every collection path carries a trailing '/'.
func isCollectionPath(p string) bool {
	return strings.HasSuffix(p, "/")
}

// find implements §4.F's Find: for each lock, normalize its URL and
// compare it against parentPath (with parentRecursive = withChildren),
// bucketing by the comparator's outcome.
func find(locks []ActiveLock, parentPath string, withChildren bool, findParents bool) LockStatus {
	queryURL := lockurl.Normalize(parentPath, isCollectionPath(parentPath))

	var status LockStatus
	for _, l := range locks {
		lockURL := lockurl.Normalize(l.path, isCollectionPath(l.path))
		switch lockurl.Compare(queryURL, withChildren, lockURL, l.recursive) {
		case lockurl.Reference:
			status.Reference = append(status.Reference, l)
		case lockurl.LeftIsParent:
			status.Child = append(status.Child, l)
		case lockurl.RightIsParent:
			if findParents {
				status.Parent = append(status.Parent, l)
			}
		}
	}
	return status
}
