package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/identity-service/docs"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	infrahttp "github.com/99minutos/identity-service/internal/infrastructure/http"
	"github.com/99minutos/identity-service/internal/infrastructure/http/handlers"
)

// Options carries everything the router needs. Accounts is required.
type Options struct {
	Accounts           ports.AccountService
	Cookie             handler.CookieConfig
	CORSAllowedOrigins []string
	Checkers           []handlers.Checker
	Log                zerolog.Logger
	// Metrics mounts echoprometheus and /metrics. Tests building several
	// routers in one process turn it off to avoid duplicate registration.
	Metrics bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(opts.Log))
	if len(opts.CORSAllowedOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     opts.CORSAllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           3600,
		}))
	}
	if opts.Metrics {
		e.Use(echoprometheus.NewMiddleware("identity"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(opts.Accounts, opts.Cookie)
	requireAuth := middleware.Auth(opts.Accounts, opts.Cookie.Name)
	anyRole := middleware.RBAC(domain.RoleRead, domain.RoleWrite, domain.RoleAdmin)

	auth := e.Group("/api/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/change-password", authHandler.ChangePassword, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth, anyRole)

	// --- Probes and docs (no auth required) ---
	infrahttp.RegisterProbes(e, opts.Checkers...)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
