package routes

import (
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/api/handler"
	"github.com/NienCongChua/lms-forum-id-sub000/api/middleware"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/entity"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	IssueRate      *middleware.RateLimiter
}

func NewRouter(e *echo.Echo, authHandler *handler.AuthHandler, authMiddleware middleware.AuthMiddleware, logger logrus.FieldLogger) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		AuthMiddleware: authMiddleware,
		AuthRate:       middleware.NewRateLimiter("auth", rate.Limit(5), 10, 5*time.Minute, logger),
		// tighter bucket for endpoints that trigger email sends
		IssueRate: middleware.NewRateLimiter("issue", rate.Limit(1), 3, 10*time.Minute, logger),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/register", r.Auth.Register, r.IssueRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.AuthRate.Middleware())
	e.POST("/auth/refresh", r.Auth.Refresh, r.AuthRate.Middleware())
	e.POST("/auth/logout", r.Auth.Logout, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/logout-all", r.Auth.LogoutAll, r.AuthMiddleware.RequireAuth)

	e.POST("/auth/forgot-password", r.Auth.ForgotPassword, r.IssueRate.Middleware())
	e.POST("/auth/verify-reset-code", r.Auth.VerifyResetCode, r.AuthRate.Middleware())
	e.POST("/auth/reset-password", r.Auth.ResetPassword, r.AuthRate.Middleware())
	e.POST("/auth/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	e.POST("/auth/resend-verification", r.Auth.ResendVerification, r.IssueRate.Middleware())

	e.GET("/me", r.Auth.Me, r.AuthMiddleware.RequireAuth)
	e.GET("/admin/users", r.Auth.AdminListUsers, r.AuthMiddleware.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
	e.POST("/admin/users/:id/revoke-sessions", r.Auth.AdminRevokeUserSessions, r.AuthMiddleware.RequireAuth, middleware.RequireRole(entity.UserRoleAdmin))
}
