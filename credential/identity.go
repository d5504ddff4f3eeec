package credential

import "sync"

// Identity is the user a session connects as
type Identity struct {
	UserID   string `json:"id"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`

	// Token is the bearer credential; never logged
	Token string `json:"-"`
}

// SamePrincipal reports whether both identities name the same user, tenant and
// role. Token rotation alone does not change the principal.
func (i Identity) SamePrincipal(other Identity) bool {
	return i.UserID == other.UserID &&
		i.TenantID == other.TenantID &&
		i.Role == other.Role
}

// Store is the read-only source of the current identity
type Store interface {
	// Identity returns the current identity, or false when nobody is signed in
	Identity() (Identity, bool)
}

// StaticStore is an in-memory Store whose identity is set programmatically.
type StaticStore struct {
	mu       sync.RWMutex
	identity Identity
	present  bool
}

// NewStaticStore returns a store holding id
func NewStaticStore(id Identity) *StaticStore {
	return &StaticStore{identity: id, present: true}
}

// Identity implements Store
func (s *StaticStore) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.present
}

// Set replaces the identity
func (s *StaticStore) Set(id Identity) {
	s.mu.Lock()
	s.identity = id
	s.present = true
	s.mu.Unlock()
}

// Clear signs the identity out
func (s *StaticStore) Clear() {
	s.mu.Lock()
	s.identity = Identity{}
	s.present = false
	s.mu.Unlock()
}
