package identity

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// RoleType represents a marketplace role carried by an authenticated identity
type RoleType string

const (
	RoleClient RoleType = "client" // Seeks legal representation
	RoleLawyer RoleType = "lawyer" // Offers legal representation
)

// Identity is the authenticated user as returned by the marketplace API.
// Roles is ordered: the first entry is the primary role used for default
// landing-page routing.
type Identity struct {
	ID        string     `json:"id,omitempty"`        // Unique identifier for the user
	Email     string     `json:"email,omitempty"`     // User's email address
	FirstName string     `json:"firstname,omitempty"` // First name of the user
	LastName  string     `json:"lastname,omitempty"`  // Last name of the user
	Roles     []RoleType `json:"roles,omitempty"`     // Ordered role list, first is primary
	Address   string     `json:"address,omitempty"`   // Postal address
	Location  string     `json:"location,omitempty"`  // City / region
	Phone     string     `json:"phone,omitempty"`     // Contact phone number
}

// PrimaryRole returns the first role in the persisted ordering, falling back
// to RoleClient when the identity carries no roles.
func (id *Identity) PrimaryRole() RoleType {
	if id == nil || len(id.Roles) == 0 {
		return RoleClient
	}
	return id.Roles[0]
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role RoleType) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity's role set intersects roles.
func (id *Identity) HasAnyRole(roles ...RoleType) bool {
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// LandingPath is the default route for the identity, "/client" or "/lawyer".
func (id *Identity) LandingPath() string {
	return "/" + string(id.PrimaryRole())
}

// Marshal serialises the identity for durable storage.
func (id *Identity) Marshal() (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", errors.Wrap(err, "[Identity.Marshal] json.Marshal")
	}
	return string(data), nil
}

// Unmarshal parses a stored or redirect-supplied identity payload.
func Unmarshal(payload string) (*Identity, error) {
	var id Identity
	if err := json.Unmarshal([]byte(payload), &id); err != nil {
		return nil, errors.Wrap(err, "[identity.Unmarshal] json.Unmarshal")
	}
	return &id, nil
}
