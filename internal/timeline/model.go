package timeline

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// DefaultMinClarity is the score an approved word is raised to.
const DefaultMinClarity = 82.0

// Model owns the current Set and applies transitions to it. It is safe for
// concurrent use; every transition is applied to the set current at the time
// of the call.
type Model struct {
	mu         sync.RWMutex
	set        Set
	index      map[string]int
	estimator  RepairEstimator
	minClarity float64
}

// Option configures a Model.
type Option func(*Model)

// WithEstimator sets the repair-quality estimator used by Fix.
func WithEstimator(e RepairEstimator) Option {
	return func(m *Model) { m.estimator = e }
}

// WithMinClarity sets the floor Approve raises scores to.
func WithMinClarity(v float64) Option {
	return func(m *Model) { m.minClarity = v }
}

// NewModel returns an empty model.
func NewModel(opts ...Option) *Model {
	m := &Model{
		index:      map[string]int{},
		estimator:  NewRandomEstimator(rand.Uint64()),
		minClarity: DefaultMinClarity,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Replace swaps in a new set wholesale. Ids from the previous set stop
// resolving.
func (m *Model) Replace(s Set) {
	s = s.Clone()
	idx := make(map[string]int, len(s.Tokens))
	for i, t := range s.Tokens {
		idx[t.ID] = i
	}

	m.mu.Lock()
	m.set = s
	m.index = idx
	m.mu.Unlock()
}

// Snapshot returns a copy of the current set.
func (m *Model) Snapshot() Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.Clone()
}

// Token returns one token without changing it.
func (m *Model) Token(id string) (WordToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return WordToken{}, fmt.Errorf("%w: %s", ErrUnknownToken, id)
	}
	return m.set.Tokens[i], nil
}

// Stats summarises the current set.
func (m *Model) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.Stats()
}

// RunSeq returns the sequence number of the run that produced the set.
func (m *Model) RunSeq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set.RunSeq
}

// Approve marks a word clean and raises its score to the minimum accepted
// clarity. Approving a clean word again changes nothing.
func (m *Model) Approve(id string) (WordToken, error) {
	return m.apply(id, "approve", func(t *WordToken) error {
		t.Status = StatusClean
		if t.Score < m.minClarity {
			t.Score = m.minClarity
		}
		return nil
	})
}

// Flag marks a word ghost. A non-empty reason replaces the previous one.
func (m *Model) Flag(id, reason string) (WordToken, error) {
	return m.apply(id, "flag", func(t *WordToken) error {
		t.Status = StatusGhost
		if reason != "" {
			t.GhostReason = reason
		}
		return nil
	})
}

// Fix marks a warn or ghost word repaired and assigns its post-repair score.
func (m *Model) Fix(id string) (WordToken, error) {
	return m.apply(id, "fix", func(t *WordToken) error {
		if t.Status != StatusWarn && t.Status != StatusGhost {
			return fmt.Errorf("%w: fix %s from %s", ErrInvalidTransition, t.ID, t.Status)
		}
		t.Score = clampRepair(m.estimator.Estimate(*t))
		t.Status = StatusFixed
		return nil
	})
}

// apply runs fn on a copy of the token and commits it only on success, so a
// rejected transition leaves the set untouched.
func (m *Model) apply(id, op string, fn func(*WordToken) error) (WordToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return WordToken{}, fmt.Errorf("%w: %s", ErrUnknownToken, id)
	}
	t := m.set.Tokens[i]
	if t.Status == StatusFixed {
		return t, fmt.Errorf("%w: %s %s is already fixed", ErrInvalidTransition, op, id)
	}
	if err := fn(&t); err != nil {
		return m.set.Tokens[i], err
	}
	m.set.Tokens[i] = t
	return t, nil
}
