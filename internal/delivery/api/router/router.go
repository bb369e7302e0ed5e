// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"reviewhub/internal/delivery/api/middleware"
	"reviewhub/internal/delivery/api/router/handler"
	"reviewhub/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AccountHandler *handler.AccountHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	accountHandler *handler.AccountHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		accountHandler: params.AccountHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	accounts := e.Group("/api/accounts")
	{
		accounts.POST("/registration", r.accountHandler.Register)
		accounts.POST("/login", r.accountHandler.Login)
		accounts.POST("/forgot-password", r.accountHandler.ForgotPassword)
		accounts.POST("/reset-password", r.accountHandler.ResetPassword)
		accounts.POST("/external-login", r.accountHandler.ExternalLogin)
	}

	authenticated := accounts.Group("", r.authMiddleware.Authenticate)
	{
		authenticated.PUT("/settings", r.accountHandler.ChangeSettings)
		authenticated.GET("/info/:email", r.accountHandler.AccountInfo)
		authenticated.GET("", r.accountHandler.ListUsers, r.authMiddleware.RequireRole(entity.RoleAdmin))
	}
}
