package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/api/handler"
	apiMiddleware "github.com/NienCongChua/lms-forum-id-sub000/api/middleware"
	"github.com/NienCongChua/lms-forum-id-sub000/api/routes"
	"github.com/NienCongChua/lms-forum-id-sub000/config"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/repository"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/service"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	db := config.ConnectionDb()
	validate := validator.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	accessSecret := []byte(os.Getenv("JWT_SECRET"))
	issuer := os.Getenv("JWT_ISSUER")
	if len(accessSecret) == 0 {
		logger.Fatal("JWT_SECRET is required")
	}

	accessManager := utils.JWTManager{
		Secret:         accessSecret,
		Issuer:         issuer,
		AccessTokenTTL: 15 * time.Minute,
	}
	accessIssuer := service.JWTAccessIssuer{Manager: &accessManager}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	codeRepo := repository.NewVerificationCodeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	passwordHasher := service.BcryptPasswordHasher{}
	emailSender := service.NewResendEmailSender(os.Getenv("RESEND_API_KEY"), os.Getenv("EMAIL_FROM"))

	verificationService := service.NewVerificationService(
		userRepo,
		codeRepo,
		sessionRepo,
		auditRepo,
		emailSender,
		passwordHasher,
		service.RealClock{},
		logger,
	)

	authService := service.NewAuthService(
		userRepo,
		sessionRepo,
		auditRepo,
		verificationService,
		passwordHasher,
		accessIssuer,
		service.RealClock{},
		service.AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
	)

	authHandler := handler.NewAuthHandler(authService, verificationService, validate)
	authHandler.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	authHandler.SecureCookies = os.Getenv("COOKIE_SECURE") != "false"

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager}
	router := routes.NewRouter(app, authHandler, authMiddleware, logger)
	router.RegisterRoutes()

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	janitor := service.NewJanitor(codeRepo, sessionRepo, service.RealClock{}, logger, time.Hour)
	go janitor.Run(janitorCtx)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithField("addr", addr).Info("server started")
	if err := app.StartServer(server); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
