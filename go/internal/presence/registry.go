package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

// Entry binds one live connection to its identity
type Entry struct {
	Identity models.Identity
	JoinedAt time.Time
}

// Registry is the in-memory connection<->identity table. It is ephemeral
// and process-local: it is rebuilt per connection and a presence count is
// only ever a per-process approximation across instances. Gateway pumps
// dispatch from multiple goroutines, so access is mutex-guarded.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register binds a connection to an identity. Idempotent per connection:
// any prior binding for the same connection is replaced.
func (r *Registry) Register(connID string, identity models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[connID] = Entry{
		Identity: identity,
		JoinedAt: time.Now(),
	}
}

// Unregister removes a binding and returns the removed identity.
// No-op if the connection was never registered; disconnect is idempotent.
func (r *Registry) Unregister(connID string) (models.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[connID]
	if !ok {
		return models.Identity{}, false
	}
	delete(r.entries, connID)
	return entry.Identity, true
}

// Get resolves the identity bound to a connection
func (r *Registry) Get(connID string) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[connID]
	return entry.Identity, ok
}

// Count returns the current number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Identities returns the distinct identities present right now. An identity
// connected twice appears once.
func (r *Registry) Identities() []models.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uuid.UUID]bool, len(r.entries))
	identities := make([]models.Identity, 0, len(r.entries))
	for _, entry := range r.entries {
		if seen[entry.Identity.ID] {
			continue
		}
		seen[entry.Identity.ID] = true
		identities = append(identities, entry.Identity)
	}
	return identities
}

// ConnectionsFor returns the connection IDs bound to an identity. An
// identity may hold several connections, one per open tab.
func (r *Registry) ConnectionsFor(identityID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connIDs []string
	for connID, entry := range r.entries {
		if entry.Identity.ID == identityID {
			connIDs = append(connIDs, connID)
		}
	}
	return connIDs
}

// Clear drops every binding, returning how many were removed. Used by the
// session reset.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := len(r.entries)
	r.entries = make(map[string]Entry)
	return cleared
}
