package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider names an external identity provider.
type Provider string

const (
	ProviderFacebook Provider = "FACEBOOK"
	ProviderGoogle   Provider = "GOOGLE"
)

// ParseProvider maps a client supplied tag ("google", "FACEBOOK") to a Provider.
func ParseProvider(tag string) (Provider, bool) {
	p := Provider(strings.ToUpper(strings.TrimSpace(tag)))
	if !p.IsValid() {
		return "", false
	}

	return p, true
}

// IsValid checks if the Provider is a supported value.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderFacebook, ProviderGoogle:
		return true
	default:
		return false
	}
}

func (p Provider) String() string {
	return string(p)
}

// ExternalLogin binds a provider subject to exactly one local user.
type ExternalLogin struct {
	Provider  Provider  // Which provider issued the subject id.
	SubjectID string    // The provider's stable user id (Google "sub", Facebook user id).
	UserID    uuid.UUID // The local user the identity belongs to.
	CreatedAt time.Time // When the link was created.
}

// ExternalIdentity is what a provider vouched for after verifying a token.
type ExternalIdentity struct {
	Provider  Provider
	SubjectID string
	Email     string
}
