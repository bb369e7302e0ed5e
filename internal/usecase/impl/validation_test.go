package impl

import (
	"testing"

	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/errors"
	"reviewhub/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValidator_ItemizesEveryField(t *testing.T) {
	v := newInputValidator()

	problems := v.problems(&usecase.RegisterInput{Email: "not-an-email"})
	assert.ElementsMatch(t, []string{
		"The Email field is not a valid e-mail address.",
		"The Password field is required.",
		"The Nickname field is required.",
	}, problems)

	assert.Empty(t, v.problems(&usecase.RegisterInput{Email: "a@x.com", Password: "p", Nickname: "n"}))

	problems = v.problems(&usecase.ResetPasswordInput{Email: "a@x.com", Token: "t", Password: "a", ConfirmPassword: "b"})
	assert.Equal(t, []string{"The Password and ConfirmPassword fields do not match."}, problems)

	assert.Empty(t, v.problems(&usecase.ResetPasswordInput{Email: "a@x.com", Token: "t", Password: "a"}),
		"confirmation is optional on reset")
}

func TestParseCallbackURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		allowed []string
		wantErr bool
	}{
		{name: "https", raw: "https://app.example.com/reset"},
		{name: "http with port", raw: "http://localhost:4200/reset", allowed: []string{"localhost"}},
		{name: "allowed host case-insensitive", raw: "https://APP.example.com/reset", allowed: []string{"app.example.com"}},
		{name: "relative", raw: "/reset", wantErr: true},
		{name: "javascript", raw: "javascript:alert(1)", wantErr: true},
		{name: "ftp", raw: "ftp://app.example.com/reset", wantErr: true},
		{name: "credentials", raw: "https://user:pw@app.example.com/reset", wantErr: true},
		{name: "hash route", raw: "https://app.example.com/#/reset"},
		{name: "host not allowed", raw: "https://evil.example.com/reset", allowed: []string{"app.example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := parseCallbackURI(tt.raw, tt.allowed)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed), "got %v", err)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, u)
		})
	}
}
