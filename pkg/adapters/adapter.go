// Package adapters implements external-service integrations invoked through
// the adapter_call tool. Adapters authenticate with a resolved bearer token;
// every outbound request carries a fixed User-Agent.
package adapters

import (
	"context"
	"fmt"
	"sort"
)

// UserAgent is sent on every outbound adapter request
const UserAgent = "lea-agent/0.1"

// Adapter is a uniform call interface over an external service
type Adapter interface {
	// ID returns the adapter identifier
	ID() string

	// Call performs an action with a bearer token and action payload
	Call(ctx context.Context, token, action string, payload map[string]interface{}) (map[string]interface{}, error)
}

// Registry holds the available adapters keyed by id
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the default adapter registry: a live GitHub client and
// placeholder adapters for the remaining connectable services.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewGitHubAdapter())
	for _, id := range []string{"notion", "google-drive", "figma", "vercel", "canva"} {
		r.Register(&stubAdapter{id: id})
	}
	return r
}

// Register adds an adapter, replacing any existing one with the same id
func (r *Registry) Register(a Adapter) {
	r.adapters[a.ID()] = a
}

// Get returns the adapter for an id
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the registered adapter ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// stubAdapter stands in for integrations that are not wired yet
type stubAdapter struct {
	id string
}

func (s *stubAdapter) ID() string { return s.id }

func (s *stubAdapter) Call(_ context.Context, _, action string, payload map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"adapter": s.id,
		"action":  action,
		"payload": payload,
		"message": fmt.Sprintf("Adapter %s is stubbed. Wire it to a real integration to activate.", s.id),
	}, nil
}
