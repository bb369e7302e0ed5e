// Package google verifies Google ID tokens.
package google

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var validIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// TokenValidator checks signature, expiry and audience of an ID token.
// *idtoken.Validator satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// Verifier implements service.ExternalTokenVerifier for Google.
type Verifier struct {
	clientID  string
	timeout   time.Duration
	validator TokenValidator
	logger    *slog.Logger
}

// NewVerifier builds a verifier backed by Google's published signing keys.
func NewVerifier(cfg *config.Config, logger *slog.Logger) (service.ExternalTokenVerifier, error) {
	googleCfg := cfg.GoogleOAuth
	if googleCfg == nil {
		googleCfg = &config.GoogleOAuthConfig{}
	}

	validator, err := idtoken.NewValidator(context.Background(),
		option.WithHTTPClient(&http.Client{Timeout: googleCfg.Timeout}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create google id token validator")
	}

	return NewVerifierWithValidator(googleCfg, validator, logger), nil
}

// NewVerifierWithValidator is NewVerifier with a caller supplied validator.
func NewVerifierWithValidator(cfg *config.GoogleOAuthConfig, validator TokenValidator, logger *slog.Logger) *Verifier {
	return &Verifier{
		clientID:  cfg.ClientID,
		timeout:   cfg.Timeout,
		validator: validator,
		logger:    logger,
	}
}

// Provider implements service.ExternalTokenVerifier.
func (v *Verifier) Provider() entity.Provider {
	return entity.ProviderGoogle
}

// Verify implements service.ExternalTokenVerifier.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*entity.ExternalIdentity, error) {
	if v.clientID == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "google sign-in is not configured")
	}
	if rawToken == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "empty google id token")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	payload, err := v.validator.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		v.logger.DebugContext(ctx, "Google ID token rejected", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, err.Error())
	}

	if _, ok := validIssuers[payload.Issuer]; !ok {
		return nil, errors.Wrapf(domainerrors.ErrInvalidExternalToken, "unexpected issuer %q", payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "token has no subject")
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "token has no email")
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "google email is not verified")
	}

	return &entity.ExternalIdentity{
		Provider:  entity.ProviderGoogle,
		SubjectID: payload.Subject,
		Email:     entity.NormalizeEmail(email),
	}, nil
}
