package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

const principalKey = "principal"

// Verifier resolves a raw credential to the principal it proves.
type Verifier interface {
	Verify(ctx context.Context, credential string) (domain.Principal, error)
}

// Credential returns the raw credential presented with the request. The
// cookie wins over an Authorization: Bearer header.
func Credential(c echo.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Auth verifies the presented credential and injects the principal into the
// context. Every session or token failure collapses to 401.
func Auth(v Verifier, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := v.Verify(c.Request().Context(), Credential(c, cookieName))
			if err != nil {
				if domain.IsCredentialRejection(err) {
					return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
				}
				return fmt.Errorf("verify credential: %w", err)
			}

			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal set by Auth.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok
}

// SetPrincipal attaches p to the request context. Tests use it to skip Auth.
func SetPrincipal(c echo.Context, p domain.Principal) {
	c.Set(principalKey, p)
}
