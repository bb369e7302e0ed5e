package auth

import (
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	"reviewhub/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// jwtService signs and validates HS256 session tokens.
type jwtService struct {
	signingKey []byte        // Secret key for signing session tokens.
	issuer     string        // Optional "iss" claim.
	audience   string        // Optional "aud" claim.
	lifetime   time.Duration // exp - iat.
	now        func() time.Time
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenIssuer, error) {
	return newJWTService(cfg.JWT, time.Now)
}

func newJWTService(cfg config.JWTConfig, now func() time.Time) (*jwtService, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("jwt signing key must be provided")
	}
	if cfg.Lifetime <= 0 {
		return nil, errors.New("jwt lifetime must be positive")
	}

	return &jwtService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		lifetime:   cfg.Lifetime,
		now:        now,
	}, nil
}

// Issue builds the claim set for user and signs it.
func (s *jwtService) Issue(user *entity.User) (*service.SessionToken, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.lifetime)

	claims := service.SessionClaims{
		Email:    user.Email,
		Nickname: user.Nickname,
		Roles:    user.Roles.ToStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, "sign session token")
	}

	return &service.SessionToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Validate checks signature, algorithm, expiry, issuer and audience.
func (s *jwtService) Validate(tokenString string) (*service.SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &service.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse session token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}

	return claims, nil
}
