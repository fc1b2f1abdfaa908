package http

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/infrastructure/http/handlers"
)

// RegisterProbes mounts the liveness and readiness probes. They never require
// authentication.
func RegisterProbes(e *echo.Echo, checkers ...handlers.Checker) {
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(checkers...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
}
