package impl

import (
	"context"
	"log/slog"

	"reviewhub/config"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/repository"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

var errIdentityUnresolved = errors.New("identity not bound to any user")

// IdentityLinker maps a verified external identity to exactly one local user,
// linking or creating as needed.
type IdentityLinker struct {
	txManager   repository.TransactionManager
	userRepo    repository.UserRepository
	adminEmails []string
	logger      *slog.Logger
}

// IdentityLinkerParams holds dependencies for IdentityLinker, injected by Fx.
type IdentityLinkerParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Config    *config.Config
	Logger    *slog.Logger
}

// NewIdentityLinker is the constructor for IdentityLinker.
func NewIdentityLinker(params IdentityLinkerParams) *IdentityLinker {
	var adminEmails []string
	if params.Config != nil && params.Config.Auth != nil {
		adminEmails = params.Config.Auth.AdminEmails
	}

	return &IdentityLinker{
		txManager:   params.TxManager,
		userRepo:    params.UserRepo,
		adminEmails: adminEmails,
		logger:      params.Logger,
	}
}

// Resolve returns the user bound to identity. Concurrent calls for the same
// new identity converge on one user; the losers observe the winner's link.
func (l *IdentityLinker) Resolve(ctx context.Context, identity *entity.ExternalIdentity) (*entity.User, error) {
	user, err := l.lookup(ctx, identity)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errIdentityUnresolved) {
		return nil, err
	}

	user, err = l.create(ctx, identity)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserAlreadyExists) && !errors.Is(err, repository.ErrExternalLoginExists) {
		return nil, errors.Wrap(err, "create external user")
	}

	// Lost a race with another resolver; its result must now be visible.
	loggerFrom(ctx, l.logger).InfoContext(ctx, "External identity created concurrently, re-resolving",
		slog.String("provider", identity.Provider.String()))

	user, err = l.lookup(ctx, identity)
	if errors.Is(err, errIdentityUnresolved) {
		return nil, errors.Wrap(domainerrors.ErrAccountConflict, "identity could not be linked after concurrent creation")
	}

	return user, err
}

// lookup covers resolution through an existing link or an existing email.
func (l *IdentityLinker) lookup(ctx context.Context, identity *entity.ExternalIdentity) (*entity.User, error) {
	user, err := l.userRepo.FindByExternalLogin(ctx, identity.Provider, identity.SubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrExternalLoginNotFound) {
		return nil, errors.Wrap(err, "find by external login")
	}

	user, err = l.userRepo.FindByEmail(ctx, identity.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, errIdentityUnresolved
	}
	if err != nil {
		return nil, errors.Wrap(err, "find by email")
	}

	return l.link(ctx, user, identity)
}

func (l *IdentityLinker) link(ctx context.Context, user *entity.User, identity *entity.ExternalIdentity) (*entity.User, error) {
	if existing, ok := user.ExternalLoginFor(identity.Provider); ok && existing.SubjectID != identity.SubjectID {
		return nil, errors.Wrapf(domainerrors.ErrAccountConflict, "user already linked to another %s account", identity.Provider)
	}

	login := &entity.ExternalLogin{
		Provider:  identity.Provider,
		SubjectID: identity.SubjectID,
		UserID:    user.ID,
	}
	err := l.userRepo.AddExternalLogin(ctx, login)
	switch {
	case err == nil:
		user.ExternalLogins = append(user.ExternalLogins, *login)
		loggerFrom(ctx, l.logger).InfoContext(ctx, "Linked external login to existing account",
			slog.String("provider", identity.Provider.String()),
			slog.String("user_id", user.ID.String()))

		return user, nil
	case errors.Is(err, repository.ErrExternalLoginExists):
		bound, findErr := l.userRepo.FindByExternalLogin(ctx, identity.Provider, identity.SubjectID)
		if findErr != nil {
			return nil, errors.Wrap(domainerrors.ErrAccountConflict, findErr.Error())
		}

		return bound, nil
	case errors.Is(err, repository.ErrProviderAlreadyLinked):
		return nil, errors.Wrapf(domainerrors.ErrAccountConflict, "user already linked to another %s account", identity.Provider)
	default:
		return nil, errors.Wrap(err, "add external login")
	}
}

// create inserts the user and its link in one transaction.
func (l *IdentityLinker) create(ctx context.Context, identity *entity.ExternalIdentity) (*entity.User, error) {
	user := &entity.User{
		Email:         identity.Email,
		UserName:      identity.Email,
		Nickname:      identity.Email,
		SecurityStamp: entity.NewSecurityStamp(),
		Roles:         rolesFor(identity.Email, l.adminEmails),
		ExternalLogins: []entity.ExternalLogin{{
			Provider:  identity.Provider,
			SubjectID: identity.SubjectID,
		}},
	}

	err := l.txManager.Execute(ctx, func(factory repository.RepositoryFactory) error {
		return factory.UserRepo().Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	loggerFrom(ctx, l.logger).InfoContext(ctx, "Created account from external login",
		slog.String("provider", identity.Provider.String()),
		slog.String("user_id", user.ID.String()))

	return user, nil
}
