// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account that can authenticate with a password, a linked external login, or both.
type User struct {
	ID             uuid.UUID       // Stable identifier, never changes once assigned.
	Email          string          // Normalized (lower-case) email, unique across users.
	UserName       string          // Login name; equals the email for accounts created by this service.
	Nickname       string          // Display name shown next to reviews.
	PasswordHash   *string         // bcrypt hash; nil for accounts that only sign in externally.
	SecurityStamp  string          // Random value rotated on every credential change.
	Roles          Roles           // Authorization roles carried into session tokens.
	ExternalLogins []ExternalLogin // Provider identities bound to this user.
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword reports whether the user can sign in with a local password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// ExternalLoginFor returns the user's link for provider, if any.
func (u *User) ExternalLoginFor(provider Provider) (ExternalLogin, bool) {
	for _, login := range u.ExternalLogins {
		if login.Provider == provider {
			return login, true
		}
	}

	return ExternalLogin{}, false
}

// NormalizeEmail is the canonical form used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewSecurityStamp returns a fresh random stamp.
func NewSecurityStamp() string {
	return rand.Text()
}
