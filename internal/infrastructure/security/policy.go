package security

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	minUsernameLen   = 3
	maxUsernameLen   = 32
	minPasswordBytes = 8
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

var (
	ErrUsernameLength = errors.New("username must be between 3 and 32 characters")
	ErrUsernameFormat = errors.New("username must start with a letter and contain only letters, digits, '_', '-' or '.'")
	ErrPasswordLength = errors.New("password must be between 8 and 72 bytes")
	ErrPasswordBlank  = errors.New("password must not be blank")
	ErrEmailInvalid   = errors.New("email must be a valid address of at most 254 characters")
)

// Policy implements ports.CredentialPolicy on top of go-playground/validator
// with a custom "username" tag.
type Policy struct {
	v *validator.Validate
}

var _ ports.CredentialPolicy = (*Policy)(nil)

func NewPolicy() *Policy {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Policy{v: v}
}

func (p *Policy) ValidateUsername(username string) error {
	if n := len([]rune(username)); n < minUsernameLen || n > maxUsernameLen {
		return ErrUsernameLength
	}
	if err := p.v.Var(username, "username"); err != nil {
		return ErrUsernameFormat
	}
	return nil
}

func (p *Policy) ValidatePassword(password string) error {
	if len(password) < minPasswordBytes || len(password) > MaxPasswordBytes {
		return ErrPasswordLength
	}
	if strings.TrimSpace(password) == "" {
		return ErrPasswordBlank
	}
	return nil
}

// ValidateEmail accepts the empty string; email is optional.
func (p *Policy) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if err := p.v.Var(email, "email,max=254"); err != nil {
		return ErrEmailInvalid
	}
	return nil
}
