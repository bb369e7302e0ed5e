// Package facebook verifies Facebook user access tokens through the Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
)

type debugTokenResponse struct {
	Data struct {
		AppID     string `json:"app_id"`
		UserID    string `json:"user_id"`
		IsValid   bool   `json:"is_valid"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"data"`
}

type profileResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verifier implements service.ExternalTokenVerifier for Facebook.
type Verifier struct {
	appID     string
	appSecret string
	graphURL  string
	client    *http.Client
	now       func() time.Time
	logger    *slog.Logger
}

// NewVerifier creates a Graph API backed verifier.
func NewVerifier(cfg *config.Config, logger *slog.Logger) service.ExternalTokenVerifier {
	fbCfg := cfg.FacebookOAuth
	if fbCfg == nil {
		fbCfg = &config.FacebookOAuthConfig{}
	}

	return NewVerifierWithClient(fbCfg, &http.Client{Timeout: fbCfg.Timeout}, logger)
}

// NewVerifierWithClient is NewVerifier with a caller supplied HTTP client.
func NewVerifierWithClient(cfg *config.FacebookOAuthConfig, client *http.Client, logger *slog.Logger) *Verifier {
	return &Verifier{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		graphURL:  strings.TrimRight(cfg.GraphURL, "/"),
		client:    client,
		now:       time.Now,
		logger:    logger,
	}
}

// Provider implements service.ExternalTokenVerifier.
func (v *Verifier) Provider() entity.Provider {
	return entity.ProviderFacebook
}

// Verify implements service.ExternalTokenVerifier.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*entity.ExternalIdentity, error) {
	if v.appID == "" || v.appSecret == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "facebook sign-in is not configured")
	}
	if rawToken == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "empty facebook access token")
	}

	var debug debugTokenResponse
	err := v.get(ctx, "/debug_token", url.Values{
		"input_token":  {rawToken},
		"access_token": {v.appID + "|" + v.appSecret},
	}, &debug)
	if err != nil {
		v.logger.WarnContext(ctx, "Facebook token inspection failed", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, err.Error())
	}

	if !debug.Data.IsValid {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "facebook token is not valid")
	}
	if debug.Data.AppID != v.appID {
		return nil, errors.Wrapf(domainerrors.ErrInvalidExternalToken, "token issued for app %q", debug.Data.AppID)
	}
	// expires_at of 0 means the token does not expire.
	if debug.Data.ExpiresAt != 0 && !v.now().Before(time.Unix(debug.Data.ExpiresAt, 0)) {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "facebook token expired")
	}

	var profile profileResponse
	err = v.get(ctx, "/me", url.Values{
		"fields":       {"id,email"},
		"access_token": {rawToken},
	}, &profile)
	if err != nil {
		v.logger.WarnContext(ctx, "Facebook profile lookup failed", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, err.Error())
	}

	if profile.ID == "" || profile.Email == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "facebook profile lacks id or email")
	}
	if debug.Data.UserID != "" && debug.Data.UserID != profile.ID {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "facebook profile does not match token")
	}

	return &entity.ExternalIdentity{
		Provider:  entity.ProviderFacebook,
		SubjectID: profile.ID,
		Email:     entity.NormalizeEmail(profile.Email),
	}, nil
}

func (v *Verifier) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.graphURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build graph request")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call graph %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("graph %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode graph %s response", path)
	}

	return nil
}
