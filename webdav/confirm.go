package webdav

import (
	"context"
	"time"
)

// Confirm implements LockSystem.Confirm (the supplemented "validate"
// operation §4.F folds into acquire but the teacher's declared
// interface names explicitly). Up to two resource names are checked: for
// each non-empty name, every currently active lock covering it
// (Reference or Parent) must be satisfied by at least one supplied
// condition, by token. A lock already held by an unreleased Confirm
// cannot be Confirmed again.
func (m *Manager) Confirm(now time.Time, name0, name1 string, conditions ...Condition) (release func(), err error) {
	ctx := context.Background()

	tx, err := m.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	locks, err := m.readLocks(ctx, tx)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]bool)
	for _, name := range []string{name0, name1} {
		if name == "" {
			continue
		}
		covering := find(locks, name, false, true).Flatten()
		for _, l := range covering {
			if !anyConditionMatches(conditions, l.StateToken()) {
				return nil, ErrConfirmationFailed
			}
			tokens[l.StateToken()] = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for tok := range tokens {
		if m.confirmed[tok] {
			return nil, ErrConfirmationFailed
		}
	}
	for tok := range tokens {
		m.confirmed[tok] = true
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for tok := range tokens {
			delete(m.confirmed, tok)
		}
	}, nil
}

// clearConfirmed drops stateToken's confirmed hold, if any, so a
// released or expired lock's token can never linger in the guard set.
func (m *Manager) clearConfirmed(stateToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.confirmed, stateToken)
}

// anyConditionMatches reports whether at least one condition is an
// unnegated token match against stateToken, or a negated match against
// some other token (i.e. "Not <some-other-token>" is satisfied by any
// token other than its own).
func anyConditionMatches(conditions []Condition, stateToken string) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, c := range conditions {
		if c.Token == "" {
			continue
		}
		holds := c.Token == stateToken
		if c.Not {
			holds = !holds
		}
		if holds {
			return true
		}
	}
	return false
}
