package auth

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/repository"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type credentialVerifier struct {
	userRepo  repository.UserRepository
	hasher    service.PasswordHasher
	policy    service.PasswordPolicy
	codec     *resetTokenCodec
	dummyHash string
	logger    *slog.Logger
}

// CredentialVerifierParams holds dependencies for the credential verifier, injected by Fx.
type CredentialVerifierParams struct {
	fx.In

	UserRepo repository.UserRepository
	Hasher   service.PasswordHasher
	Policy   service.PasswordPolicy
	Config   *config.Config
	Logger   *slog.Logger
}

// NewCredentialVerifier wires password checks and reset tokens.
func NewCredentialVerifier(params CredentialVerifierParams) (service.CredentialVerifier, error) {
	return newCredentialVerifier(params, time.Now)
}

func newCredentialVerifier(params CredentialVerifierParams, now func() time.Time) (*credentialVerifier, error) {
	resetCfg := params.Config.PasswordReset
	if resetCfg.SigningKey == "" {
		return nil, errors.New("password reset signing key must be provided")
	}
	if resetCfg.Lifetime <= 0 {
		return nil, errors.New("password reset lifetime must be positive")
	}

	// Compared against when a user has no password so both paths cost one bcrypt comparison.
	dummyHash, err := params.Hasher.Hash(rand.Text())
	if err != nil {
		return nil, errors.Wrap(err, "prepare dummy hash")
	}

	return &credentialVerifier{
		userRepo: params.UserRepo,
		hasher:   params.Hasher,
		policy:   params.Policy,
		codec: &resetTokenCodec{
			key:      []byte(resetCfg.SigningKey),
			lifetime: resetCfg.Lifetime,
			now:      now,
		},
		dummyHash: dummyHash,
		logger:    params.Logger,
	}, nil
}

func (v *credentialVerifier) VerifyPassword(user *entity.User, plaintext string) bool {
	if !user.HasPassword() {
		v.hasher.Check(plaintext, v.dummyHash)

		return false
	}

	return v.hasher.Check(plaintext, *user.PasswordHash)
}

func (v *credentialVerifier) IssueResetToken(user *entity.User) (string, error) {
	return v.codec.issue(user)
}

func (v *credentialVerifier) RedeemResetToken(ctx context.Context, user *entity.User, token, newPassword string) error {
	if err := v.codec.verify(user, token); err != nil {
		v.logger.DebugContext(ctx, "Reset token rejected", slog.Any("userID", user.ID), slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrInvalidToken, "redeem reset token")
	}

	err := v.storePassword(ctx, user, newPassword)
	if errors.Is(err, repository.ErrStaleSecurityStamp) {
		// A concurrent redemption or credential change won the swap.
		return errors.Wrap(domainerrors.ErrInvalidToken, "reset token already consumed")
	}

	return err
}

func (v *credentialVerifier) ChangePassword(ctx context.Context, user *entity.User, newPassword string) error {
	err := v.storePassword(ctx, user, newPassword)
	if errors.Is(err, repository.ErrStaleSecurityStamp) {
		return errors.Wrap(domainerrors.ErrInvalidCredentials, "credentials changed concurrently")
	}

	return err
}

func (v *credentialVerifier) storePassword(ctx context.Context, user *entity.User, newPassword string) error {
	if reasons := v.policy.Validate(newPassword); len(reasons) > 0 {
		return domainerrors.ErrValidationFailed.WithErrors(reasons...)
	}

	hash, err := v.hasher.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "hash new password")
	}

	newStamp := entity.NewSecurityStamp()
	if err := v.userRepo.UpdatePassword(ctx, user.ID, user.SecurityStamp, hash, newStamp); err != nil {
		return errors.Wrap(err, "update password")
	}

	user.PasswordHash = &hash
	user.SecurityStamp = newStamp

	return nil
}
