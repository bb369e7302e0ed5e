// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"reviewhub/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific persistence outcomes. Implementations translate driver
// errors into these so callers never depend on a database package.
var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrExternalLoginNotFound is returned when no user is bound to a provider subject.
	ErrExternalLoginNotFound = errors.New("external login not found")
	// ErrUserAlreadyExists is returned when the email is already taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrExternalLoginExists is returned when the provider subject is already bound.
	ErrExternalLoginExists = errors.New("external login already exists")
	// ErrProviderAlreadyLinked is returned when the user already holds a different link for the provider.
	ErrProviderAlreadyLinked = errors.New("provider already linked to user")
	// ErrStaleSecurityStamp is returned when a compare-and-swap on the security stamp loses.
	ErrStaleSecurityStamp = errors.New("security stamp changed")
)

// UserRepository is the user store. Uniqueness of email and of
// (provider, subject id) is enforced atomically by the implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a user by normalized email.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByExternalLogin retrieves the user bound to (provider, subjectID).
	FindByExternalLogin(ctx context.Context, provider entity.Provider, subjectID string) (*entity.User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*entity.User, error)

	// Create persists a new user. ID and timestamps are filled in on success.
	Create(ctx context.Context, user *entity.User) error

	// UpdateProfile persists the user's nickname.
	UpdateProfile(ctx context.Context, user *entity.User) error

	// UpdatePassword replaces the password hash and security stamp only while
	// the stored stamp still equals expectedStamp.
	UpdatePassword(ctx context.Context, userID uuid.UUID, expectedStamp, passwordHash, newStamp string) error

	// AddExternalLogin binds a provider subject to an existing user.
	AddExternalLogin(ctx context.Context, login *entity.ExternalLogin) error
}
