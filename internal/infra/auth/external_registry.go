package auth

import (
	"context"

	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type externalVerifierRegistry struct {
	verifiers map[entity.Provider]service.ExternalTokenVerifier
}

// ExternalVerifierParams collects every provider verifier registered in the Fx graph.
type ExternalVerifierParams struct {
	fx.In

	Verifiers []service.ExternalTokenVerifier `group:"external_verifiers"`
}

// NewExternalVerifierRegistry indexes verifiers by provider.
func NewExternalVerifierRegistry(params ExternalVerifierParams) (service.ExternalVerifierRegistry, error) {
	verifiers := make(map[entity.Provider]service.ExternalTokenVerifier, len(params.Verifiers))
	for _, v := range params.Verifiers {
		if _, dup := verifiers[v.Provider()]; dup {
			return nil, errors.Errorf("duplicate verifier for provider %s", v.Provider())
		}
		verifiers[v.Provider()] = v
	}

	return &externalVerifierRegistry{verifiers: verifiers}, nil
}

func (r *externalVerifierRegistry) Verify(ctx context.Context, provider entity.Provider, rawToken string) (*entity.ExternalIdentity, error) {
	verifier, ok := r.verifiers[provider]
	if !ok {
		return nil, errors.Wrapf(domainerrors.ErrInvalidExternalToken, "unsupported provider %q", provider)
	}

	identity, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if identity.Provider != provider {
		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, "verifier returned identity for another provider")
	}

	return identity, nil
}
