// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"reviewhub/config"
	deliverycontext "reviewhub/internal/delivery/context"
	"reviewhub/internal/domain/constants"
	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/repository"
	"reviewhub/internal/domain/service"
	"reviewhub/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	userRepo      repository.UserRepository
	hasher        service.PasswordHasher
	policy        service.PasswordPolicy
	credentials   service.CredentialVerifier
	tokens        service.TokenIssuer
	verifiers     service.ExternalVerifierRegistry
	linker        *IdentityLinker
	emailSender   service.EmailSender
	limiter       service.RateLimiter
	validator     *inputValidator
	callbackHosts []string
	adminEmails   []string
	logger        *slog.Logger
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	UserRepo    repository.UserRepository
	Hasher      service.PasswordHasher
	Policy      service.PasswordPolicy
	Credentials service.CredentialVerifier
	Tokens      service.TokenIssuer
	Verifiers   service.ExternalVerifierRegistry
	Linker      *IdentityLinker
	EmailSender service.EmailSender
	Limiter     service.RateLimiter
	Config      *config.Config
	Logger      *slog.Logger
}

// NewAccountService is the constructor for accountService. It receives all dependencies as interfaces.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	var adminEmails []string
	if params.Config.Auth != nil {
		adminEmails = params.Config.Auth.AdminEmails
	}

	return &accountService{
		userRepo:      params.UserRepo,
		hasher:        params.Hasher,
		policy:        params.Policy,
		credentials:   params.Credentials,
		tokens:        params.Tokens,
		verifiers:     params.Verifiers,
		linker:        params.Linker,
		emailSender:   params.EmailSender,
		limiter:       params.Limiter,
		validator:     newInputValidator(),
		callbackHosts: params.Config.PasswordReset.CallbackHosts,
		adminEmails:   adminEmails,
		logger:        params.Logger,
	}
}

// loggerFrom returns a request-scoped logger if available, otherwise the fallback.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, fallback)
}

func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return loggerFrom(ctx, srv.logger)
}

// Register creates a local account. Every input and policy problem is reported at once.
func (srv *accountService) Register(ctx context.Context, input *usecase.RegisterInput) error {
	problems := srv.validator.problems(input)
	if input.Password != "" {
		problems = append(problems, srv.policy.Validate(input.Password)...)
	}
	if err := validationError(problems...); err != nil {
		return err
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	email := entity.NormalizeEmail(input.Email)
	user := &entity.User{
		Email:         email,
		UserName:      email,
		Nickname:      input.Nickname,
		PasswordHash:  &hash,
		SecurityStamp: entity.NewSecurityStamp(),
		Roles:         rolesFor(email, srv.adminEmails),
	}

	err = srv.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrUserAlreadyExists) {
		return domainerrors.ErrConflict.WithErrors(fmt.Sprintf("Email '%s' is already taken.", email))
	}
	if err != nil {
		return errors.Wrap(err, "create user")
	}

	srv.log(ctx).InfoContext(ctx, "Account registered", slog.String("user_id", user.ID.String()))

	return nil
}

// Login authenticates with email and password. Unknown users and wrong
// passwords are indistinguishable, including in timing.
func (srv *accountService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.AuthOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "find user")
	}

	if !srv.credentials.VerifyPassword(user, input.Password) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	return srv.issue(user)
}

// ChangeSettings updates the caller's nickname and optionally the password.
// A wrong current password aborts before anything is written.
func (srv *accountService) ChangeSettings(ctx context.Context, input *usecase.ChangeSettingsInput) (*usecase.AuthOutput, error) {
	if err := validationError(srv.validator.problems(input)...); err != nil {
		return nil, err
	}
	if entity.NormalizeEmail(input.Email) != entity.NormalizeEmail(input.CallerEmail) {
		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "settings belong to another account")
	}

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	if input.OldPassword != "" && input.NewPassword != "" && input.ConfirmPassword != "" {
		if input.NewPassword != input.ConfirmPassword {
			return nil, validationError("The NewPassword and ConfirmPassword fields do not match.")
		}
		if !srv.credentials.VerifyPassword(user, input.OldPassword) {
			return nil, domainerrors.ErrIncorrectPassword
		}
		if err := srv.credentials.ChangePassword(ctx, user, input.NewPassword); err != nil {
			return nil, err
		}
		srv.log(ctx).InfoContext(ctx, "Password changed", slog.String("user_id", user.ID.String()))
	}

	user.Nickname = input.Nickname
	if err := srv.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, errors.Wrap(err, "update profile")
	}

	return srv.issue(user)
}

// ForgotPassword mails a reset link built from the caller supplied client URI.
func (srv *accountService) ForgotPassword(ctx context.Context, input *usecase.ForgotPasswordInput) error {
	if err := validationError(srv.validator.problems(input)...); err != nil {
		return err
	}
	callback, err := parseCallbackURI(input.ClientURI, srv.callbackHosts)
	if err != nil {
		return err
	}
	if err := srv.throttle(ctx, "forgot", input.Email); err != nil {
		return err
	}

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return errors.Wrap(err, "find user")
	}

	token, err := srv.credentials.IssueResetToken(user)
	if err != nil {
		return errors.Wrap(err, "issue reset token")
	}

	query := callback.Query()
	query.Set("token", token)
	query.Set("email", input.Email)
	callback.RawQuery = query.Encode()

	err = srv.emailSender.Send(ctx, &service.EmailMessage{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		To:        []string{user.Email},
		Subject:   constants.ResetPasswordSubject,
		Body:      callback.String(),
	})
	if err != nil {
		srv.log(ctx).ErrorContext(ctx, "Failed to queue reset email",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrInternalError, "send reset email")
	}

	return nil
}

// ResetPassword redeems a reset token. No session is issued; the caller logs in afterwards.
func (srv *accountService) ResetPassword(ctx context.Context, input *usecase.ResetPasswordInput) error {
	if err := validationError(srv.validator.problems(input)...); err != nil {
		return err
	}
	if err := srv.throttle(ctx, "reset", input.Email); err != nil {
		return err
	}

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return errors.Wrap(err, "find user")
	}

	if err := srv.credentials.RedeemResetToken(ctx, user, input.Token, input.Password); err != nil {
		return err
	}

	srv.log(ctx).InfoContext(ctx, "Password reset", slog.String("user_id", user.ID.String()))

	return nil
}

// ExternalLogin verifies a provider token and signs in the linked account.
func (srv *accountService) ExternalLogin(ctx context.Context, input *usecase.ExternalLoginInput) (*usecase.AuthOutput, error) {
	if problems := srv.validator.problems(input); len(problems) > 0 {
		return nil, domainerrors.ErrInvalidExternalToken.WithErrors(problems...)
	}

	provider, ok := entity.ParseProvider(input.Provider)
	if !ok {
		return nil, errors.Wrapf(domainerrors.ErrInvalidExternalToken, "unsupported provider %q", input.Provider)
	}

	identity, err := srv.verifiers.Verify(ctx, provider, input.IDToken)
	if err != nil {
		srv.log(ctx).InfoContext(ctx, "External token rejected",
			slog.String("provider", provider.String()), slog.Any("error", err))
		if errors.Is(err, domainerrors.ErrInvalidExternalToken) {
			return nil, err
		}

		return nil, errors.Wrap(domainerrors.ErrInvalidExternalToken, err.Error())
	}

	user, err := srv.linker.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	return srv.issue(user)
}

// AccountInfo returns the public profile for email.
func (srv *accountService) AccountInfo(ctx context.Context, email string) (*usecase.AccountInfo, error) {
	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	return &usecase.AccountInfo{Email: user.Email, Nickname: user.Nickname}, nil
}

// ListUsers returns every account for administrators.
func (srv *accountService) ListUsers(ctx context.Context) ([]usecase.UserSummary, error) {
	users, err := srv.userRepo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	summaries := make([]usecase.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, usecase.UserSummary{ID: u.ID, Email: u.Email, Nickname: u.Nickname})
	}

	return summaries, nil
}

func (srv *accountService) issue(user *entity.User) (*usecase.AuthOutput, error) {
	token, err := srv.tokens.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "issue session token")
	}

	return &usecase.AuthOutput{Token: token.Token, ExpiresAt: token.ExpiresAt, User: user}, nil
}

// throttle counts an attempt for (action, email). Limiter outages fail closed.
func (srv *accountService) throttle(ctx context.Context, action, email string) error {
	err := srv.limiter.Allow(ctx, action+":"+entity.NormalizeEmail(email))
	if err == nil || errors.Is(err, domainerrors.ErrTooManyRequests) {
		return err
	}

	srv.log(ctx).ErrorContext(ctx, "Rate limiter unavailable", slog.String("action", action), slog.Any("error", err))

	return errors.Wrap(domainerrors.ErrInternalError, "rate limiter unavailable")
}

// rolesFor grants the user role to everyone and admin to configured emails.
func rolesFor(email string, adminEmails []string) entity.Roles {
	roles := entity.Roles{entity.RoleUser}
	if slices.ContainsFunc(adminEmails, func(admin string) bool {
		return entity.NormalizeEmail(admin) == entity.NormalizeEmail(email)
	}) {
		roles = append(roles, entity.RoleAdmin)
	}

	return roles
}
