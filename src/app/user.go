package app

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Status marks whether a user may act at all.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusBlocked
}

// Provider names a third-party identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
)

// Identity is what a provider tells us about the person who logged in.
type Identity struct {
	Provider Provider
	Subject  string
	Email    string
	Username string
}

// Principal is the authenticated actor of a request.
type Principal struct {
	ID     primitive.ObjectID
	Role   Role
	Status Status
}

// IsAdmin reports whether the principal has the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Owns reports whether the principal may mutate a resource owned by owner.
// Admins may mutate everything.
func (p *Principal) Owns(owner primitive.ObjectID) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.ID == owner
}

// User represents a registered account. Users authenticated through a third-party
// provider carry the provider's subject id.
type User struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// User's preferred username, often used for display.
	Username string `bson:"username" json:"username"`

	// User's email address, unique across users.
	Email string `bson:"email" json:"email"`

	// bcrypt hash, empty for provider-only accounts.
	PasswordHash string `bson:"password,omitempty" json:"-"`

	Role   Role   `bson:"role" json:"role"`
	Status Status `bson:"status" json:"status"`

	GoogleID   string `bson:"googleId,omitempty" json:"googleId,omitempty"`
	GitHubID   string `bson:"githubId,omitempty" json:"githubId,omitempty"`
	FacebookID string `bson:"facebookId,omitempty" json:"facebookId,omitempty"`

	// Ids of the collections this user owns.
	Collections []primitive.ObjectID `bson:"collections" json:"collections"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Principal returns the request principal for u.
func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Role: u.Role, Status: u.Status}
}

// UserPatch holds the fields of a user that may be changed by an update.
// Nil fields are left untouched.
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
	Status       *Status
}
