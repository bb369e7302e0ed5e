package service

import (
	"context"

	"reviewhub/internal/domain/entity"
)

// CredentialVerifier owns local password checks and the reset token lifecycle.
type CredentialVerifier interface {
	// VerifyPassword reports whether plaintext matches the user's hash.
	// Users without a password never match.
	VerifyPassword(user *entity.User, plaintext string) bool

	// IssueResetToken returns a token bound to the user's current security stamp.
	IssueResetToken(user *entity.User) (string, error)

	// RedeemResetToken replaces the password if token is valid for user.
	// Fails with ErrInvalidToken or ErrValidationFailed.
	RedeemResetToken(ctx context.Context, user *entity.User, token, newPassword string) error

	// ChangePassword validates and stores newPassword, rotating the security stamp.
	ChangePassword(ctx context.Context, user *entity.User, newPassword string) error
}
