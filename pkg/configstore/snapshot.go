package configstore

import (
	"context"
)

// PolicySnapshot is an immutable view of all tool policies, taken at
// registry-build time. Admin upserts invalidate the cached snapshot so the
// next build sees them; a snapshot already handed out never changes.
type PolicySnapshot struct {
	policies map[string]ToolPolicy
}

// Get returns the policy for a tool, if configured
func (ps *PolicySnapshot) Get(toolID string) (ToolPolicy, bool) {
	if ps == nil {
		return ToolPolicy{}, false
	}
	p, ok := ps.policies[toolID]
	return p, ok
}

// Len returns the number of configured policies
func (ps *PolicySnapshot) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.policies)
}

// EmptySnapshot returns a snapshot with no overrides
func EmptySnapshot() *PolicySnapshot {
	return &PolicySnapshot{policies: map[string]ToolPolicy{}}
}

// SnapshotFromPolicies builds a snapshot from an explicit policy list
func SnapshotFromPolicies(policies []ToolPolicy) *PolicySnapshot {
	m := make(map[string]ToolPolicy, len(policies))
	for _, p := range policies {
		m[p.ToolID] = p
	}
	return &PolicySnapshot{policies: m}
}

// Snapshot returns a consistent snapshot of all tool policies, loading from
// the database when the cache has been invalidated by an upsert.
func (s *Store) Snapshot(ctx context.Context) (*PolicySnapshot, error) {
	s.snapMu.RLock()
	cached := s.snapshot
	s.snapMu.RUnlock()

	if cached != nil {
		return cached, nil
	}

	policies, err := s.GetAllToolPolicies(ctx)
	if err != nil {
		return nil, err
	}

	snap := SnapshotFromPolicies(policies)

	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()

	return snap, nil
}

func (s *Store) invalidateSnapshot() {
	s.snapMu.Lock()
	s.snapshot = nil
	s.snapMu.Unlock()
}
