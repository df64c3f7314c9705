// Package auth holds the credential, identity and authorization rules
// shared by every protected endpoint: password hashing and
// verification, the role enumeration, and the object-key ownership
// gate for file access.
package auth

// Role is a coarse-grained permission tier. There is no hierarchy;
// every check enumerates the roles it permits.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
	RoleDeveloper   Role = "developer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleAdmin, RoleDeveloper:
		return true
	}
	return false
}

// Identity is the resolved principal for one request. It is derived
// fresh from the session row on every request and never cached.
type Identity struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	Name           string `json:"name,omitempty"`
	RegistrationID string `json:"registrationId,omitempty"`
}

// HasRole reports whether the identity's role is exactly one of the
// allowed roles. A nil identity never passes.
func (id *Identity) HasRole(allowed ...Role) bool {
	if id == nil {
		return false
	}
	for _, r := range allowed {
		if id.Role == r {
			return true
		}
	}
	return false
}
