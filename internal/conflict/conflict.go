// Package conflict implements the conflict-detection rule of §4.E: given
// the locks found around a requested scope and the share mode of a
// candidate lock, decide which of those locks actually block the
// request.
package conflict

import "fmt"

// Lock is the minimal shape the analyzer needs from a candidate or
// existing active lock.
type Lock struct {
	ShareMode string // "exclusive" | "shared"
}

// Share implements the Share() string method Conflicting needs.
func (l Lock) Share() string { return l.ShareMode }

const (
	ShareExclusive = "exclusive"
	ShareShared    = "shared"
)

// Status groups the locks found around a query path by the comparator,
// mirroring §3's LockStatus triple.
type Status[L any] struct {
	Reference []L
	Parent    []L
	Child     []L
}

// Flatten returns the three buckets concatenated in parent, reference,
// child order, the order §4.F's GetAffectedLocks specifies.
func (s Status[L]) Flatten() []L {
	out := make([]L, 0, len(s.Parent)+len(s.Reference)+len(s.Child))
	out = append(out, s.Parent...)
	out = append(out, s.Reference...)
	out = append(out, s.Child...)
	return out
}

// Empty reports whether the status carries no locks at all.
func (s Status[L]) Empty() bool {
	return len(s.Reference) == 0 && len(s.Parent) == 0 && len(s.Child) == 0
}

// String renders a diagnostic summary, for logging only, never part of
// any wire format.
func (s Status[L]) String() string {
	return fmt.Sprintf("LockStatus{reference:%d parent:%d child:%d}", len(s.Reference), len(s.Parent), len(s.Child))
}

// Conflicting returns, from all locks found at/around the requested
// scope (in parent/reference/child order), those that block a request
// with the given share mode:
//
//   - requestShareMode == exclusive: every found lock conflicts.
//   - requestShareMode == shared: only found exclusive locks conflict;
//     shared-with-shared is always compatible regardless of position.
func Conflicting[L interface{ Share() string }](status Status[L], requestShareMode string) []L {
	all := status.Flatten()
	if requestShareMode == ShareExclusive {
		return all
	}
	var out []L
	for _, l := range all {
		if l.Share() == ShareExclusive {
			out = append(out, l)
		}
	}
	return out
}
