package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/memory"
	"github.com/99minutos/identity-service/internal/infrastructure/security"
	"github.com/99minutos/identity-service/internal/infrastructure/system"
)

const (
	cookieName = "jwt"
	jwtSecret  = "0123456789abcdef0123456789abcdef"
	sessionTTL = 30 * time.Minute
	tokenTTL   = 24 * time.Hour
)

type server struct {
	e     *echo.Echo
	clock *system.ManualClock
}

func newServer(kind domain.CredentialKind) *server {
	clock := system.NewManualClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	hasher, err := security.NewBcryptHasher(bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	policy := security.NewPolicy()
	users := memory.NewCredentialStore()

	factory := service.NewUserFactory(policy, hasher, clock, system.UUIDGenerator{})
	auth, err := service.NewAuthService(users, factory, policy, hasher, clock, log)
	Expect(err).NotTo(HaveOccurred())

	var issuer ports.CredentialIssuer
	switch kind {
	case domain.CredentialSession:
		issuer = service.NewSessionIssuer(memory.NewSessionStore(), clock, sessionTTL, log)
	case domain.CredentialToken:
		issuer, err = service.NewTokenIssuer([]byte(jwtSecret), tokenTTL, clock,
			system.UUIDGenerator{}, system.ULIDGenerator{Clock: clock}, memory.NewRevocationStore(), log)
		Expect(err).NotTo(HaveOccurred())
	}

	e := api.NewRouter(api.Options{
		Accounts: service.NewAccountService(auth, issuer, policy, log),
		Cookie:   handler.CookieConfig{Name: cookieName, Secure: true},
		Log:      log,
	})
	return &server{e: e, clock: clock}
}

type response struct {
	code   int
	body   map[string]any
	cookie *http.Cookie
}

// do sends a JSON request carrying credential as the cookie when non-empty.
func (s *server) do(method, path, body, credential string) response {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: credential})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	resp := response{code: rec.Code, body: map[string]any{}}
	if rec.Body.Len() > 0 {
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp.body)).To(Succeed(), rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			resp.cookie = c
		}
	}
	return resp
}

func (s *server) login(username, password string) string {
	resp := s.do(http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	Expect(resp.code).To(Equal(http.StatusOK), "%v", resp.body)
	Expect(resp.cookie).NotTo(BeNil())
	return resp.cookie.Value
}

var _ = Describe("account lifecycle", func() {
	for _, kind := range []domain.CredentialKind{domain.CredentialSession, domain.CredentialToken} {
		Describe("with the "+string(kind)+" strategy", func() {
			var s *server

			BeforeEach(func() {
				s = newServer(kind)
			})

			It("walks alice through signup, login, password change and logout", func() {
				resp := s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"pw-123456"}`, "")
				Expect(resp.code).To(Equal(http.StatusCreated))
				Expect(resp.body["user"]).To(HaveKeyWithValue("roles", ConsistOf(domain.RoleRead)))

				first := s.login("alice", "pw-123456")

				resp = s.do(http.MethodGet, "/api/auth/me", "", first)
				Expect(resp.code).To(Equal(http.StatusOK))
				Expect(resp.body).To(HaveKeyWithValue("username", "alice"))

				resp = s.do(http.MethodPost, "/api/auth/change-password", `{"old_password":"wrong-pass","new_password":"pw-654321"}`, first)
				Expect(resp.code).To(Equal(http.StatusBadRequest))
				Expect(resp.body).To(HaveKeyWithValue("error", "invalid old password"))

				resp = s.do(http.MethodPost, "/api/auth/change-password", `{"old_password":"pw-123456","new_password":"pw-654321"}`, first)
				Expect(resp.code).To(Equal(http.StatusOK))
				Expect(resp.cookie).NotTo(BeNil())
				Expect(resp.cookie.MaxAge).To(BeNumerically("<", 0))

				By("rejecting the credential presented with the change")
				Expect(s.do(http.MethodGet, "/api/auth/me", "", first).code).To(Equal(http.StatusUnauthorized))

				By("rejecting the old password")
				resp = s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw-123456"}`, "")
				Expect(resp.code).To(Equal(http.StatusUnauthorized))
				Expect(resp.body).To(HaveKeyWithValue("error", "invalid username or password"))

				second := s.login("alice", "pw-654321")
				Expect(second).NotTo(Equal(first))

				resp = s.do(http.MethodPost, "/api/auth/logout", "", second)
				Expect(resp.code).To(Equal(http.StatusOK))
				Expect(s.do(http.MethodGet, "/api/auth/me", "", second).code).To(Equal(http.StatusUnauthorized))

				By("succeeding on a repeated logout")
				Expect(s.do(http.MethodPost, "/api/auth/logout", "", second).code).To(Equal(http.StatusOK))
			})

			It("signs alice up with an email, refuses a wrong password and accepts only the new one", func() {
				resp := s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"correct-horse","email":"a@example.com"}`, "")
				Expect(resp.code).To(Equal(http.StatusCreated))
				Expect(resp.body["user"]).To(HaveKeyWithValue("email", "a@example.com"))

				resp = s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`, "")
				Expect(resp.code).To(Equal(http.StatusUnauthorized))
				Expect(resp.cookie).To(BeNil())

				cred := s.login("alice", "correct-horse")
				resp = s.do(http.MethodPost, "/api/auth/change-password", `{"old_password":"correct-horse","new_password":"battery-staple"}`, cred)
				Expect(resp.code).To(Equal(http.StatusOK))
				Expect(resp.body).To(HaveKeyWithValue("message", "password changed"))

				Expect(s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`, "").code).
					To(Equal(http.StatusUnauthorized))
				s.login("alice", "battery-staple")
			})

			It("hides which field collided on signup", func() {
				Expect(s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"pw-123456","email":"a@example.com"}`, "").code).
					To(Equal(http.StatusCreated))

				byName := s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"pw-123456"}`, "")
				byEmail := s.do(http.MethodPost, "/api/auth/signup", `{"username":"alicia","password":"pw-123456","email":"A@example.com"}`, "")
				Expect(byName.code).To(Equal(http.StatusConflict))
				Expect(byEmail.code).To(Equal(http.StatusConflict))
				Expect(byName.body).To(Equal(byEmail.body))
			})

			It("rejects invalid signups with the policy reason", func() {
				resp := s.do(http.MethodPost, "/api/auth/signup", `{"username":"al","password":"pw-123456"}`, "")
				Expect(resp.code).To(Equal(http.StatusBadRequest))
				Expect(resp.body).To(HaveKeyWithValue("field", "username"))
			})

			It("answers unknown users and wrong passwords identically", func() {
				Expect(s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"pw-123456"}`, "").code).
					To(Equal(http.StatusCreated))

				unknown := s.do(http.MethodPost, "/api/auth/login", `{"username":"mallory","password":"pw-123456"}`, "")
				wrong := s.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw-000000"}`, "")
				Expect(unknown.code).To(Equal(http.StatusUnauthorized))
				Expect(unknown.body).To(Equal(wrong.body))
			})

			It("expires credentials after their lifetime", func() {
				Expect(s.do(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"pw-123456"}`, "").code).
					To(Equal(http.StatusCreated))
				cred := s.login("alice", "pw-123456")

				ttl := sessionTTL
				if kind == domain.CredentialToken {
					ttl = tokenTTL
				}
				s.clock.Advance(ttl)

				Expect(s.do(http.MethodGet, "/api/auth/me", "", cred).code).To(Equal(http.StatusUnauthorized))
			})

			It("requires a credential for protected routes", func() {
				Expect(s.do(http.MethodGet, "/api/auth/me", "", "").code).To(Equal(http.StatusUnauthorized))
				Expect(s.do(http.MethodGet, "/api/auth/me", "", "garbage").code).To(Equal(http.StatusUnauthorized))
				Expect(s.do(http.MethodPost, "/api/auth/logout", "", "garbage").code).To(Equal(http.StatusOK))
			})
		})
	}
})

var _ = Describe("probes", func() {
	It("reports liveness and readiness without authentication", func() {
		s := newServer(domain.CredentialSession)
		Expect(s.do(http.MethodGet, "/health", "", "").code).To(Equal(http.StatusOK))
		Expect(s.do(http.MethodGet, "/health/ready", "", "").code).To(Equal(http.StatusOK))
	})
})
