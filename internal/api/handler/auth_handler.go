package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Messages returned to clients. Signup conflicts and login failures are
// deliberately uniform so they do not reveal which accounts exist.
const (
	msgSignupConflict          = "account could not be created"
	msgInvalidCredentials      = "invalid username or password"
	msgInvalidOldPassword      = "invalid old password"
	msgInvalidNewPassword      = "invalid new password"
	msgPasswordChangedRetained = "password changed; other sign-ins could not be ended, log in again and log out of other devices"
)

// CookieConfig controls the cookie carrying the credential.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	accounts ports.AccountService
	cookie   CookieConfig
}

func NewAuthHandler(accounts ports.AccountService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookie: cookie}
}

// --- Request / Response types ---

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

type signupResponse struct {
	User userResponse `json:"user"`
}

type loginResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type invalidPasswordResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID(),
		Username:  u.Username(),
		Email:     u.Email(),
		Enabled:   u.Enabled(),
		Roles:     u.RoleNames(),
		CreatedAt: u.CreatedAt(),
	}
}

// Signup creates a new account holding the default role.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  signupResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	res, err := h.accounts.Signup(c.Request().Context(), ports.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case domain.SignupCreated:
		return c.JSON(http.StatusCreated, signupResponse{User: toUserResponse(r.User)})
	case domain.SignupConflict:
		return c.JSON(http.StatusConflict, map[string]string{"error": msgSignupConflict})
	case domain.SignupInvalid:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": r.Reason, "field": r.Field})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
}

// Login authenticates a user and sets the credential cookie.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case domain.LoginSucceeded:
		c.SetCookie(h.credentialCookie(r.Credential))
		resp := loginResponse{User: toUserResponse(r.User), ExpiresAt: r.Credential.ExpiresAt}
		if r.Credential.Kind == domain.CredentialToken {
			resp.Token = r.Credential.Value
		}
		return c.JSON(http.StatusOK, resp)
	default:
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": msgInvalidCredentials})
	}
}

// Logout invalidates the presented credential, if any, and clears the cookie.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      500  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := middleware.Credential(c, h.cookie.Name)
	if err := h.accounts.Logout(c.Request().Context(), raw); err != nil {
		return err
	}
	c.SetCookie(h.clearedCookie())
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// ChangePassword re-authenticates with the old password and stores the new
// one. The presented credential stops working, so the cookie is cleared.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  invalidPasswordResponse
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	res, err := h.accounts.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		Principal:   p,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case domain.PasswordChanged:
		c.SetCookie(h.clearedCookie())
		if r.CredentialsRetained {
			return c.JSON(http.StatusOK, messageResponse{Message: msgPasswordChangedRetained})
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
	case domain.OldPasswordRejected:
		return c.JSON(http.StatusBadRequest, invalidPasswordResponse{Error: msgInvalidOldPassword})
	case domain.NewPasswordRejected:
		return c.JSON(http.StatusBadRequest, invalidPasswordResponse{Error: msgInvalidNewPassword, Reason: r.Reason})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
}

// Me returns the authenticated principal.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AuthHandler) credentialCookie(cred domain.Credential) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    cred.Value,
		Path:     "/",
		Expires:  cred.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) clearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
