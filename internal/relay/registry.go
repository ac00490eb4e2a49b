package relay

import (
	"sync"

	"github.com/samber/lo"
)

// Registry maps subject ids to their live connection. A subject has at most
// one live connection at any instant; registering a second one supersedes
// the first.
//
// The hub run loop performs every mutation, but the map carries its own
// lock so read-only HTTP surfaces can take snapshots without entering the
// loop.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register stores the connection for a subject, returning the previous
// connection if one was registered so the caller can close it.
func (r *Registry) Register(subjectID string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[subjectID]
	r.clients[subjectID] = c
	return prev
}

// Unregister removes the entry only if it still holds the caller's handle.
// A stale unregister from a superseded connection is a no-op, so it can
// never race away a newer connection's registration.
func (r *Registry) Unregister(subjectID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[subjectID] != c {
		return false
	}
	delete(r.clients, subjectID)
	return true
}

func (r *Registry) Lookup(subjectID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[subjectID]
	return c, ok
}

// ActiveSubjects returns the ids of every subject with a live connection,
// used for the initial presence snapshot.
func (r *Registry) ActiveSubjects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.clients)
}

// Snapshot copies the current subject->connection map for fan-out.
func (r *Registry) Snapshot() map[string]*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Assign(map[string]*Client{}, r.clients)
}
