package service

import (
	"context"

	"reviewhub/internal/domain/entity"
)

// ExternalTokenVerifier verifies tokens issued by one identity provider.
type ExternalTokenVerifier interface {
	// Provider returns the provider this verifier handles.
	Provider() entity.Provider

	// Verify checks the token with the provider and returns the identity it vouches for.
	Verify(ctx context.Context, rawToken string) (*entity.ExternalIdentity, error)
}

// ExternalVerifierRegistry dispatches a raw token to the verifier of its provider.
type ExternalVerifierRegistry interface {
	Verify(ctx context.Context, provider entity.Provider, rawToken string) (*entity.ExternalIdentity, error)
}
