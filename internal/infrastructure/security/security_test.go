package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := h.Hash("correct-horse")
	require.NoError(t, err)
	b, err := h.Hash("correct-horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct-horse", a)
	assert.NotEqual(t, a, b, "hashes must be salted")
	for _, tc := range []struct {
		raw, hash string
		want      bool
	}{
		{"correct-horse", a, true},
		{"correct-horse", b, true},
		{"wrong-horse", a, false},
		{"correct-horse", "not-a-bcrypt-hash", false},
	} {
		ok, err := h.Verify(tc.raw, tc.hash)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "verify %q", tc.raw)
	}
}

func TestNewBcryptHasher_Cost(t *testing.T) {
	h, err := NewBcryptHasher(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.Cost())

	_, err = NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
	_, err = NewBcryptHasher(1)
	assert.Error(t, err)
}

func TestPolicy_Username(t *testing.T) {
	p := NewPolicy()
	cases := []struct {
		in   string
		want error
	}{
		{"alice", nil},
		{"a.b-c_1", nil},
		{"abc", nil},
		{strings.Repeat("a", 32), nil},
		{"ab", ErrUsernameLength},
		{strings.Repeat("a", 33), ErrUsernameLength},
		{"", ErrUsernameLength},
		{"1alice", ErrUsernameFormat},
		{"al ice", ErrUsernameFormat},
		{"alice!", ErrUsernameFormat},
		{"ålice", ErrUsernameFormat},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, p.ValidateUsername(tc.in))
		})
	}
}

func TestPolicy_Password(t *testing.T) {
	p := NewPolicy()
	assert.NoError(t, p.ValidatePassword("12345678"))
	assert.NoError(t, p.ValidatePassword(strings.Repeat("x", MaxPasswordBytes)))
	assert.Equal(t, ErrPasswordLength, p.ValidatePassword("short"))
	assert.Equal(t, ErrPasswordLength, p.ValidatePassword(strings.Repeat("x", MaxPasswordBytes+1)))
	assert.Equal(t, ErrPasswordBlank, p.ValidatePassword("          "))
}

func TestPolicy_Email(t *testing.T) {
	p := NewPolicy()
	assert.NoError(t, p.ValidateEmail(""))
	assert.NoError(t, p.ValidateEmail("alice@example.com"))
	assert.Equal(t, ErrEmailInvalid, p.ValidateEmail("not-an-email"))
	assert.Equal(t, ErrEmailInvalid, p.ValidateEmail(strings.Repeat("a", 250)+"@example.com"))
}
