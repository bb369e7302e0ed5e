package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/repository"
	"reviewhub/internal/domain/service"
	"reviewhub/internal/infra/auth"
	"reviewhub/internal/infra/persistence/memory"
	"reviewhub/internal/infra/ratelimit"
	"reviewhub/internal/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost:  bcrypt.MinCost,
			AdminEmails: []string{"admin@x.com"},
		},
	}
	cfg.JWT.SigningKey = "session-signing-key"
	cfg.JWT.Lifetime = 5 * time.Hour
	cfg.PasswordReset.SigningKey = "reset-signing-key"
	cfg.PasswordReset.Lifetime = time.Hour
	cfg.PasswordReset.CallbackHosts = []string{"app.example.com"}
	cfg.PasswordReset.RateLimit = config.RateLimit{MaxAttempts: 100, Window: time.Minute}

	return cfg
}

// mockEmailSender records queued messages.
type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) Send(ctx context.Context, msg *service.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockEmailSender) Close() error {
	return nil
}

// fakeVerifier vouches for any token listed in identities.
type fakeVerifier struct {
	provider   entity.Provider
	mu         sync.Mutex
	identities map[string]*entity.ExternalIdentity
}

func (f *fakeVerifier) Provider() entity.Provider { return f.provider }

func (f *fakeVerifier) Verify(_ context.Context, rawToken string) (*entity.ExternalIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	identity, ok := f.identities[rawToken]
	if !ok {
		return nil, domainerrors.ErrInvalidExternalToken
	}
	cp := *identity

	return &cp, nil
}

// accountFixture wires the service against the in-memory store and real auth components.
type accountFixture struct {
	service     usecase.AccountUsecase
	store       *memory.Store
	userRepo    repository.UserRepository
	tokens      service.TokenIssuer
	credentials service.CredentialVerifier
	emailSender *mockEmailSender
	facebook    *fakeVerifier
	google      *fakeVerifier
	linker      *IdentityLinker
	cfg         *config.Config
}

func newAccountFixture(t *testing.T, opts ...func(*config.Config)) *accountFixture {
	t.Helper()

	cfg := newTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := newDiscardLogger()
	store := memory.NewStore()
	userRepo := store.UserRepo()
	hasher := auth.NewBcryptHasher(cfg)
	policy := auth.NewPasswordPolicy(cfg)

	credentials, err := auth.NewCredentialVerifier(auth.CredentialVerifierParams{
		UserRepo: userRepo,
		Hasher:   hasher,
		Policy:   policy,
		Config:   cfg,
		Logger:   logger,
	})
	require.NoError(t, err)

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	facebook := &fakeVerifier{provider: entity.ProviderFacebook, identities: map[string]*entity.ExternalIdentity{}}
	google := &fakeVerifier{provider: entity.ProviderGoogle, identities: map[string]*entity.ExternalIdentity{}}
	registry, err := auth.NewExternalVerifierRegistry(auth.ExternalVerifierParams{
		Verifiers: []service.ExternalTokenVerifier{facebook, google},
	})
	require.NoError(t, err)

	linker := NewIdentityLinker(IdentityLinkerParams{
		TxManager: store.TransactionManager(),
		UserRepo:  userRepo,
		Config:    cfg,
		Logger:    logger,
	})

	emailSender := &mockEmailSender{}

	svc := NewAccountService(AccountServiceParams{
		UserRepo:    userRepo,
		Hasher:      hasher,
		Policy:      policy,
		Credentials: credentials,
		Tokens:      tokens,
		Verifiers:   registry,
		Linker:      linker,
		EmailSender: emailSender,
		Limiter:     ratelimit.NewMemoryLimiter(cfg.PasswordReset.RateLimit.MaxAttempts, cfg.PasswordReset.RateLimit.Window),
		Config:      cfg,
		Logger:      logger,
	})

	return &accountFixture{
		service:     svc,
		store:       store,
		userRepo:    userRepo,
		tokens:      tokens,
		credentials: credentials,
		emailSender: emailSender,
		facebook:    facebook,
		google:      google,
		linker:      linker,
		cfg:         cfg,
	}
}

func (fx *accountFixture) register(t *testing.T, email, password, nickname string) *entity.User {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, fx.service.Register(ctx, &usecase.RegisterInput{Email: email, Password: password, Nickname: nickname}))

	user, err := fx.userRepo.FindByEmail(ctx, email)
	require.NoError(t, err)

	return user
}

func (f *fakeVerifier) vouch(rawToken, subjectID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.identities[rawToken] = &entity.ExternalIdentity{Provider: f.provider, SubjectID: subjectID, Email: email}
}

func (fx *accountFixture) claims(t *testing.T, out *usecase.AuthOutput) *service.SessionClaims {
	t.Helper()

	require.NotNil(t, out)
	claims, err := fx.tokens.Validate(out.Token)
	require.NoError(t, err)

	return claims
}
