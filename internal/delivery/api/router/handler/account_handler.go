// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/delivery/api/middleware"
	"reviewhub/internal/delivery/api/response"
	"reviewhub/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	AccountUC usecase.AccountUsecase
	Logger    *slog.Logger
}

// AccountHandler holds dependencies for account-related handlers.
type AccountHandler struct {
	accountUC usecase.AccountUsecase
	logger    *slog.Logger
}

// NewAccountHandler is the constructor for AccountHandler.
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{
		accountUC: params.AccountUC,
		logger:    params.Logger,
	}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangeSettingsRequest represents the request body for updating the caller's settings
type ChangeSettingsRequest struct {
	Email           string `json:"email"`
	Nickname        string `json:"nickname"`
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ForgotPasswordRequest represents the request body for requesting a reset link
type ForgotPasswordRequest struct {
	Email     string `json:"email"`
	ClientURI string `json:"client_uri"`
}

// ResetPasswordRequest represents the request body for redeeming a reset token
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ExternalLoginRequest represents the request body for signing in with a provider token
type ExternalLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
}

// TokenResponse is returned by every endpoint that authenticates the caller.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountInfoResponse is the public profile of an account.
type AccountInfoResponse struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// UserSummaryResponse is one row of the admin listing.
type UserSummaryResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Nickname string    `json:"nickname"`
}

// Register handles local account registration.
func (h *AccountHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid registration input")
	}

	err := h.accountUC.Register(c.Request().Context(), &usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, nil)
}

// Login handles email and password sign-in.
func (h *AccountHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid login input")
	}

	output, err := h.accountUC.Login(c.Request().Context(), &usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toTokenResponse(output))
}

// ChangeSettings updates the authenticated caller's nickname and, optionally, password.
func (h *AccountHandler) ChangeSettings(c echo.Context) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Authentication required")
	}

	var req ChangeSettingsRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid settings input")
	}

	output, err := h.accountUC.ChangeSettings(c.Request().Context(), &usecase.ChangeSettingsInput{
		CallerEmail:     claims.Email,
		Email:           req.Email,
		Nickname:        req.Nickname,
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toTokenResponse(output))
}

// ForgotPassword mails a password reset link.
func (h *AccountHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid forgot password input")
	}

	err := h.accountUC.ForgotPassword(c.Request().Context(), &usecase.ForgotPasswordInput{
		Email:     req.Email,
		ClientURI: req.ClientURI,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil)
}

// ResetPassword redeems a password reset token.
func (h *AccountHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid reset password input")
	}

	err := h.accountUC.ResetPassword(c.Request().Context(), &usecase.ResetPasswordInput{
		Email:           req.Email,
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil)
}

// ExternalLogin signs in with a Google or Facebook token.
func (h *AccountHandler) ExternalLogin(c echo.Context) error {
	var req ExternalLoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid external login input")
	}

	output, err := h.accountUC.ExternalLogin(c.Request().Context(), &usecase.ExternalLoginInput{
		Provider: req.Provider,
		IDToken:  req.IDToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toTokenResponse(output))
}

// AccountInfo returns the public profile for the email in the path.
func (h *AccountHandler) AccountInfo(c echo.Context) error {
	info, err := h.accountUC.AccountInfo(c.Request().Context(), c.Param("email"))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, AccountInfoResponse{Email: info.Email, Nickname: info.Nickname})
}

// ListUsers returns every account. Admin only.
func (h *AccountHandler) ListUsers(c echo.Context) error {
	users, err := h.accountUC.ListUsers(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	out := make([]UserSummaryResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummaryResponse{ID: u.ID, Email: u.Email, Nickname: u.Nickname})
	}

	return response.Success(c, http.StatusOK, out)
}

// HealthCheck reports liveness.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

func toTokenResponse(output *usecase.AuthOutput) TokenResponse {
	return TokenResponse{Token: output.Token, ExpiresAt: output.ExpiresAt}
}
