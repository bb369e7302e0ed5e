// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"reviewhub/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required"`
	Nickname string `validate:"required,max=100"`
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
}

// ChangeSettingsInput updates the nickname and, when all three passwords are
// supplied, the password. CallerEmail is the email claim of the session token.
type ChangeSettingsInput struct {
	CallerEmail     string `validate:"-"`
	Email           string `validate:"required,email"`
	Nickname        string `validate:"required,max=100"`
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ForgotPasswordInput requests a reset link sent to Email.
type ForgotPasswordInput struct {
	Email     string `validate:"required,email"`
	ClientURI string `validate:"required,url"`
}

// ResetPasswordInput redeems a reset token.
type ResetPasswordInput struct {
	Email           string `validate:"required,email"`
	Token           string `validate:"required"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"omitempty,eqfield=Password"`
}

// ExternalLoginInput carries a provider tag and the provider's raw token.
type ExternalLoginInput struct {
	Provider string `validate:"required"`
	IDToken  string `validate:"required"`
}

// --- Output DTOs ---

// AuthOutput is returned by every operation that authenticates the caller.
type AuthOutput struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.User
}

// AccountInfo is the public profile of an account.
type AccountInfo struct {
	Email    string
	Nickname string
}

// UserSummary is one row of the admin user listing.
type UserSummary struct {
	ID       uuid.UUID
	Email    string
	Nickname string
}

// AccountUsecase defines the account operations offered to the delivery layer.
// Failures are domain errors from internal/domain/errors.
type AccountUsecase interface {
	Register(ctx context.Context, input *RegisterInput) error
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)
	ChangeSettings(ctx context.Context, input *ChangeSettingsInput) (*AuthOutput, error)
	ForgotPassword(ctx context.Context, input *ForgotPasswordInput) error
	ResetPassword(ctx context.Context, input *ResetPasswordInput) error
	ExternalLogin(ctx context.Context, input *ExternalLoginInput) (*AuthOutput, error)
	AccountInfo(ctx context.Context, email string) (*AccountInfo, error)
	ListUsers(ctx context.Context) ([]UserSummary, error)
}
