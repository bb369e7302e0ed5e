package impl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewhub/config"
	"reviewhub/internal/domain/constants"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"
	"reviewhub/internal/errors"
	"reviewhub/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func appErrorItems(t *testing.T, err error) []string {
	t.Helper()

	appErr, ok := errors.AsType[domainerrors.AppError](err)
	require.True(t, ok, "expected AppError, got %v", err)

	return appErr.Errors()
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)

	user := fx.register(t, "a@x.com", "Abc123!", "nick")

	out, err := fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "Abc123!"})
	require.NoError(t, err)
	claims := fx.claims(t, out)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "nick", claims.Nickname)
	assert.Equal(t, []string{"user"}, claims.Roles)

	_, wrongPassword := fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "wrong"})
	_, unknownUser := fx.service.Login(ctx, &usecase.LoginInput{Email: "nobody@x.com", Password: "Abc123!"})
	assert.True(t, errors.Is(wrongPassword, domainerrors.ErrInvalidCredentials))
	assert.Equal(t, wrongPassword, unknownUser, "unknown user and wrong password must be indistinguishable")
}

func TestAccountService_LoginIsCaseInsensitiveOnEmail(t *testing.T) {
	fx := newAccountFixture(t)
	fx.register(t, "Mixed@X.com", "Abc123!", "nick")

	out, err := fx.service.Login(context.Background(), &usecase.LoginInput{Email: "mixed@x.COM", Password: "Abc123!"})
	require.NoError(t, err)
	assert.Equal(t, "mixed@x.com", fx.claims(t, out).Email)
}

func TestAccountService_RegisterDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	err := fx.service.Register(ctx, &usecase.RegisterInput{Email: "A@X.com", Password: "Abc123!", Nickname: "other"})
	require.True(t, errors.Is(err, domainerrors.ErrConflict))
	assert.Equal(t, []string{"Email 'a@x.com' is already taken."}, appErrorItems(t, err))

	users, err := fx.service.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAccountService_RegisterConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)

	const racers = 6
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fx.service.Register(ctx, &usecase.RegisterInput{Email: "race@x.com", Password: "Abc123!", Nickname: "n"})
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domainerrors.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, conflicts)
}

func TestAccountService_RegisterItemizesAllProblems(t *testing.T) {
	fx := newAccountFixture(t)

	err := fx.service.Register(context.Background(), &usecase.RegisterInput{Email: "bad", Password: "abc", Nickname: "n"})
	require.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

	items := appErrorItems(t, err)
	assert.Contains(t, items, "The Email field is not a valid e-mail address.")
	assert.Contains(t, items, "Passwords must be at least 6 characters.")
	assert.Contains(t, items, "Passwords must have at least one digit ('0'-'9').")
	assert.Contains(t, items, "Passwords must have at least one uppercase ('A'-'Z').")
	assert.Contains(t, items, "Passwords must have at least one non alphanumeric character.")
}

func TestAccountService_AdminRoleFromConfig(t *testing.T) {
	fx := newAccountFixture(t)
	fx.register(t, "Admin@X.com", "Abc123!", "boss")

	out, err := fx.service.Login(context.Background(), &usecase.LoginInput{Email: "admin@x.com", Password: "Abc123!"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user", "admin"}, fx.claims(t, out).Roles)
}

func (fx *accountFixture) captureResetEmail(t *testing.T) *service.EmailMessage {
	t.Helper()

	var sent *service.EmailMessage
	fx.emailSender.On("Send", mock.Anything, mock.AnythingOfType("*service.EmailMessage")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*service.EmailMessage) }).
		Return(nil).Once()

	err := fx.service.ForgotPassword(context.Background(), &usecase.ForgotPasswordInput{
		Email:     "a@x.com",
		ClientURI: "https://app.example.com/reset?lang=en",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)

	return sent
}

func TestAccountService_ForgotThenResetOnce(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	sent := fx.captureResetEmail(t)
	assert.Equal(t, []string{"a@x.com"}, sent.To)
	assert.Equal(t, constants.ResetPasswordSubject, sent.Subject)

	link, err := url.Parse(sent.Body)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", link.Host)
	assert.Equal(t, "/reset", link.Path)
	assert.Equal(t, "en", link.Query().Get("lang"))
	assert.Equal(t, "a@x.com", link.Query().Get("email"))
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Email: "a@x.com", Token: token, Password: "NewAbc123!", ConfirmPassword: "NewAbc123!",
	})
	require.NoError(t, err)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "NewAbc123!"})
	require.NoError(t, err)

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Email: "a@x.com", Token: token, Password: "Other123!", ConfirmPassword: "Other123!",
	})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "NewAbc123!"})
	assert.NoError(t, err, "a rejected redemption must not change the password")
	fx.emailSender.AssertExpectations(t)
}

func TestAccountService_ResetRejectsPolicyViolationAndKeepsToken(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	link, err := url.Parse(fx.captureResetEmail(t).Body)
	require.NoError(t, err)
	token := link.Query().Get("token")

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{Email: "a@x.com", Token: token, Password: "short", ConfirmPassword: "short"})
	require.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
	assert.NotEmpty(t, appErrorItems(t, err))

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{Email: "a@x.com", Token: token, Password: "NewAbc123!", ConfirmPassword: "NewAbc123!"})
	assert.NoError(t, err)
}

func TestAccountService_ForgotPasswordKeepsHashRoute(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	var sent *service.EmailMessage
	fx.emailSender.On("Send", mock.Anything, mock.AnythingOfType("*service.EmailMessage")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*service.EmailMessage) }).
		Return(nil).Once()

	err := fx.service.ForgotPassword(ctx, &usecase.ForgotPasswordInput{
		Email: "a@x.com", ClientURI: "https://app.example.com/#/reset",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)

	link, err := url.Parse(sent.Body)
	require.NoError(t, err)
	assert.Equal(t, "/reset", link.Fragment)
	assert.NotEmpty(t, link.Query().Get("token"))
	assert.Less(t, strings.Index(sent.Body, "?"), strings.Index(sent.Body, "#"))
}

func TestAccountService_ResetWithoutConfirmation(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	link, err := url.Parse(fx.captureResetEmail(t).Body)
	require.NoError(t, err)

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{
		Email: "a@x.com", Token: link.Query().Get("token"), Password: "NewAbc123!",
	})
	require.NoError(t, err)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "NewAbc123!"})
	assert.NoError(t, err)
}

func TestAccountService_ResetValidation(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)

	err := fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{Email: "a@x.com", Token: "t", Password: "Abc123!", ConfirmPassword: "Abc123?"})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

	err = fx.service.ResetPassword(ctx, &usecase.ResetPasswordInput{Email: "nobody@x.com", Token: "t", Password: "Abc123!", ConfirmPassword: "Abc123!"})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAccountService_ForgotPasswordFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		fx := newAccountFixture(t)
		err := fx.service.ForgotPassword(ctx, &usecase.ForgotPasswordInput{Email: "nobody@x.com", ClientURI: "https://app.example.com/reset"})
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
		fx.emailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("callback host not allowed", func(t *testing.T) {
		fx := newAccountFixture(t)
		fx.register(t, "a@x.com", "Abc123!", "nick")
		err := fx.service.ForgotPassword(ctx, &usecase.ForgotPasswordInput{Email: "a@x.com", ClientURI: "https://evil.example.com/reset"})
		assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
		fx.emailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("email transport fails", func(t *testing.T) {
		fx := newAccountFixture(t)
		fx.register(t, "a@x.com", "Abc123!", "nick")
		fx.emailSender.On("Send", mock.Anything, mock.Anything).Return(errors.New("pubsub unavailable")).Once()

		err := fx.service.ForgotPassword(ctx, &usecase.ForgotPasswordInput{Email: "a@x.com", ClientURI: "https://app.example.com/reset"})
		assert.True(t, errors.Is(err, domainerrors.ErrInternalError))
	})

	t.Run("rate limited", func(t *testing.T) {
		fx := newAccountFixture(t, func(cfg *config.Config) {
			cfg.PasswordReset.RateLimit = config.RateLimit{MaxAttempts: 2, Window: time.Hour}
		})
		input := &usecase.ForgotPasswordInput{Email: "nobody@x.com", ClientURI: "https://app.example.com/reset"}

		for range 2 {
			assert.True(t, errors.Is(fx.service.ForgotPassword(ctx, input), domainerrors.ErrInvalidCredentials))
		}
		assert.True(t, errors.Is(fx.service.ForgotPassword(ctx, input), domainerrors.ErrTooManyRequests))
	})
}

func TestAccountService_ChangeSettingsWrongOldPasswordMutatesNothing(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	before := fx.register(t, "a@x.com", "Abc123!", "nick")

	_, err := fx.service.ChangeSettings(ctx, &usecase.ChangeSettingsInput{
		CallerEmail:     "a@x.com",
		Email:           "a@x.com",
		Nickname:        "renamed",
		OldPassword:     "Wrong123!",
		NewPassword:     "NewAbc123!",
		ConfirmPassword: "NewAbc123!",
	})
	require.True(t, errors.Is(err, domainerrors.ErrIncorrectPassword))

	after, err := fx.userRepo.FindByID(ctx, before.ID)
	require.NoError(t, err)
	assert.Equal(t, "nick", after.Nickname)
	assert.Equal(t, *before.PasswordHash, *after.PasswordHash)
	assert.Equal(t, before.SecurityStamp, after.SecurityStamp)
}

func TestAccountService_ChangeSettingsUpdatesPasswordAndNickname(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	out, err := fx.service.ChangeSettings(ctx, &usecase.ChangeSettingsInput{
		CallerEmail:     "a@x.com",
		Email:           "a@x.com",
		Nickname:        "renamed",
		OldPassword:     "Abc123!",
		NewPassword:     "NewAbc123!",
		ConfirmPassword: "NewAbc123!",
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", fx.claims(t, out).Nickname)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "Abc123!"})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "NewAbc123!"})
	assert.NoError(t, err)
}

func TestAccountService_ChangeSettingsNicknameOnly(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")

	// A partial password triple is ignored.
	out, err := fx.service.ChangeSettings(ctx, &usecase.ChangeSettingsInput{
		CallerEmail: "a@x.com",
		Email:       "a@x.com",
		Nickname:    "renamed",
		NewPassword: "NewAbc123!",
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", fx.claims(t, out).Nickname)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "a@x.com", Password: "Abc123!"})
	assert.NoError(t, err)
}

func TestAccountService_ChangeSettingsFailures(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.register(t, "a@x.com", "Abc123!", "nick")
	fx.register(t, "b@x.com", "Abc123!", "bee")

	tests := []struct {
		name  string
		input usecase.ChangeSettingsInput
		want  error
	}{
		{
			name:  "other account",
			input: usecase.ChangeSettingsInput{CallerEmail: "b@x.com", Email: "a@x.com", Nickname: "x"},
			want:  domainerrors.ErrInvalidCredentials,
		},
		{
			name:  "unknown user",
			input: usecase.ChangeSettingsInput{CallerEmail: "gone@x.com", Email: "gone@x.com", Nickname: "x"},
			want:  domainerrors.ErrInvalidCredentials,
		},
		{
			name:  "missing nickname",
			input: usecase.ChangeSettingsInput{CallerEmail: "a@x.com", Email: "a@x.com"},
			want:  domainerrors.ErrValidationFailed,
		},
		{
			name: "confirmation mismatch",
			input: usecase.ChangeSettingsInput{
				CallerEmail: "a@x.com", Email: "a@x.com", Nickname: "x",
				OldPassword: "Abc123!", NewPassword: "NewAbc123!", ConfirmPassword: "NewAbc123?",
			},
			want: domainerrors.ErrValidationFailed,
		},
		{
			name: "policy violation",
			input: usecase.ChangeSettingsInput{
				CallerEmail: "a@x.com", Email: "a@x.com", Nickname: "x",
				OldPassword: "Abc123!", NewPassword: "weak", ConfirmPassword: "weak",
			},
			want: domainerrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.service.ChangeSettings(ctx, &tt.input)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	info, err := fx.service.AccountInfo(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "nick", info.Nickname, "failed attempts must not rename")
}

func TestAccountService_AccountInfoAndListUsers(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	first := fx.register(t, "a@x.com", "Abc123!", "nick")
	second := fx.register(t, "b@x.com", "Abc123!", "bee")

	info, err := fx.service.AccountInfo(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, &usecase.AccountInfo{Email: "a@x.com", Nickname: "nick"}, info)

	_, err = fx.service.AccountInfo(ctx, "nobody@x.com")
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))

	users, err := fx.service.ListUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []usecase.UserSummary{
		{ID: first.ID, Email: "a@x.com", Nickname: "nick"},
		{ID: second.ID, Email: "b@x.com", Nickname: "bee"},
	}, users)
}

func TestAccountService_ExternalLoginLinksExistingUser(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	local := fx.register(t, "a@x.com", "Abc123!", "nick")
	fx.facebook.vouch("tokenX", "fb-1", "a@x.com")

	out, err := fx.service.ExternalLogin(ctx, &usecase.ExternalLoginInput{Provider: "FACEBOOK", IDToken: "tokenX"})
	require.NoError(t, err)
	assert.Equal(t, local.ID.String(), fx.claims(t, out).Subject)

	again, err := fx.service.ExternalLogin(ctx, &usecase.ExternalLoginInput{Provider: "facebook", IDToken: "tokenX"})
	require.NoError(t, err)
	assert.Equal(t, local.ID.String(), fx.claims(t, again).Subject)

	stored, err := fx.userRepo.FindByID(ctx, local.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ExternalLogins, 1)
	assert.True(t, fx.credentials.VerifyPassword(stored, "Abc123!"), "linking keeps the local password")
}

func TestAccountService_ExternalLoginCreatesPasswordlessUser(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.google.vouch("g-token", "g-1", "new@x.com")

	out, err := fx.service.ExternalLogin(ctx, &usecase.ExternalLoginInput{Provider: "GOOGLE", IDToken: "g-token"})
	require.NoError(t, err)
	claims := fx.claims(t, out)
	assert.Equal(t, "new@x.com", claims.Email)
	assert.Equal(t, "new@x.com", claims.Nickname)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Email: "new@x.com", Password: ""})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAccountService_ExternalLoginConcurrentNewIdentity(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.facebook.vouch("tokenX", "fb-1", "new@x.com")

	const racers = 8
	var wg sync.WaitGroup
	subjects := make([]string, racers)
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := fx.service.ExternalLogin(ctx, &usecase.ExternalLoginInput{Provider: "FACEBOOK", IDToken: "tokenX"})
			errs[i] = err
			if err == nil {
				claims, vErr := fx.tokens.Validate(out.Token)
				if vErr == nil {
					subjects[i] = claims.Subject
				}
			}
		}()
	}
	wg.Wait()

	for i := range racers {
		require.NoError(t, errs[i])
		assert.Equal(t, subjects[0], subjects[i])
	}

	users, err := fx.userRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Len(t, users[0].ExternalLogins, 1)
	assert.Equal(t, users[0].ID.String(), subjects[0])
}

func TestAccountService_ExternalLoginFailures(t *testing.T) {
	ctx := context.Background()
	fx := newAccountFixture(t)
	fx.facebook.vouch("first", "fb-1", "a@x.com")
	fx.facebook.vouch("second", "fb-2", "a@x.com")

	_, err := fx.service.ExternalLogin(ctx, &usecase.ExternalLoginInput{Provider: "FACEBOOK", IDToken: "first"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input usecase.ExternalLoginInput
		want  error
	}{
		{name: "unverifiable token", input: usecase.ExternalLoginInput{Provider: "FACEBOOK", IDToken: "forged"}, want: domainerrors.ErrInvalidExternalToken},
		{name: "unknown provider", input: usecase.ExternalLoginInput{Provider: "TWITTER", IDToken: "first"}, want: domainerrors.ErrInvalidExternalToken},
		{name: "missing token", input: usecase.ExternalLoginInput{Provider: "GOOGLE"}, want: domainerrors.ErrInvalidExternalToken},
		{name: "second facebook account for same user", input: usecase.ExternalLoginInput{Provider: "FACEBOOK", IDToken: "second"}, want: domainerrors.ErrAccountConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := fx.service.ExternalLogin(ctx, &tt.input)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
