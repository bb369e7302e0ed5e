package service

import (
	"time"

	"reviewhub/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set of a session token.
type SessionClaims struct {
	Email    string   `json:"email"`
	Nickname string   `json:"nickname"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// SessionToken is a signed bearer credential and its expiry.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	// Issue builds and signs a session token for user.
	Issue(user *entity.User) (*SessionToken, error)

	// Validate verifies signature, algorithm and expiry and returns the claims.
	Validate(token string) (*SessionClaims, error)
}
