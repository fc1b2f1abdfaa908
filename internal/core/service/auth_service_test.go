package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
)

func TestAuthService_Signup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.Signup(ctx, "alice", "correct-horse", "alice@example.com")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	created, ok := res.(domain.SignupCreated)
	if !ok {
		t.Fatalf("expected SignupCreated, got %T", res)
	}
	stored, err := f.users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if stored.ID() != created.User.ID() {
		t.Fatalf("stored id %q differs from returned id %q", stored.ID(), created.User.ID())
	}

	res, err = f.auth.Signup(ctx, "alice", "another-pass", "")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if _, ok := res.(domain.SignupConflict); !ok {
		t.Fatalf("expected SignupConflict, got %T", res)
	}

	res, err = f.auth.Signup(ctx, "bob", "short", "")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	invalid, ok := res.(domain.SignupInvalid)
	if !ok || invalid.Field != FieldPassword {
		t.Fatalf("expected SignupInvalid on password, got %T %+v", res, res)
	}
	if f.users.Len() != 1 {
		t.Fatalf("expected exactly one stored user, got %d", f.users.Len())
	}
}

func TestAuthService_Signup_StoreFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("connection reset")
	auth, err := NewAuthService(failingStore{err: storeErr}, f.factory, f.policy, f.hasher, f.clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	if _, err := auth.Signup(context.Background(), "alice", "correct-horse", ""); !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertUser(t, "alice", "correct-horse", true)
	f.insertUser(t, "mallory", "correct-horse", false)

	cases := []struct {
		name, username, password string
		want                     domain.AuthResult
	}{
		{"success", "alice", "correct-horse", domain.AuthSucceeded{}},
		{"wrong password", "alice", "wrong-horse", domain.AuthWrongPassword{}},
		{"unknown user", "nobody", "correct-horse", domain.AuthUserNotFound{}},
		{"disabled with right password", "mallory", "correct-horse", domain.AuthDisabled{}},
		{"disabled with wrong password", "mallory", "wrong-horse", domain.AuthWrongPassword{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.hasher.verifies.Load()

			res, err := f.auth.Authenticate(ctx, tc.username, tc.password)
			if err != nil {
				t.Fatalf("Authenticate returned error: %v", err)
			}
			if got, want := variantName(res), variantName(tc.want); got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
			if n := f.hasher.verifies.Load() - before; n != 1 {
				t.Fatalf("expected exactly one hash comparison, got %d", n)
			}
		})
	}
}

func TestAuthService_Authenticate_SucceededCarriesUser(t *testing.T) {
	f := newFixture(t)
	want := f.insertUser(t, "alice", "correct-horse", true, domain.DefaultRole, domain.Role{ID: 3, Name: domain.RoleAdmin})

	res, err := f.auth.Authenticate(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	ok, isOK := res.(domain.AuthSucceeded)
	if !isOK {
		t.Fatalf("expected AuthSucceeded, got %T", res)
	}
	if ok.User.ID() != want.ID() || len(ok.User.Roles()) != 2 {
		t.Fatalf("unexpected user: %s roles=%v", ok.User.ID(), ok.User.RoleNames())
	}
}

func TestAuthService_Authenticate_StoreFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("timeout")
	auth, err := NewAuthService(failingStore{err: storeErr}, f.factory, f.policy, f.hasher, f.clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	res, err := auth.Authenticate(context.Background(), "alice", "correct-horse")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %T", res)
	}
}

func TestAuthService_Authenticate_HasherFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.insertUser(t, "alice", "correct-horse", true)
	f.hasher.failVerify = true

	for _, username := range []string{"alice", "nobody"} {
		res, err := f.auth.Authenticate(context.Background(), username, "correct-horse")
		if err == nil {
			t.Fatalf("%s: expected hasher error, got result %T", username, res)
		}
		if res != nil {
			t.Fatalf("%s: expected nil result, got %T", username, res)
		}
	}
}

func TestAuthService_Authenticate_StoppedHashPool(t *testing.T) {
	f := newFixture(t)
	f.insertUser(t, "alice", "correct-horse", true)

	ctx, cancel := context.WithCancel(context.Background())
	pool := queue.NewHashPool(1, f.hasher, zerolog.Nop())
	pool.Start(ctx)
	auth, err := NewAuthService(f.users, f.factory, f.policy, pool, f.clock, zerolog.Nop())
	if err != nil {
		cancel()
		t.Fatalf("NewAuthService: %v", err)
	}
	cancel()
	pool.Wait()

	res, err := auth.Authenticate(context.Background(), "alice", "correct-horse")
	if !errors.Is(err, queue.ErrPoolStopped) {
		t.Fatalf("expected ErrPoolStopped, got result %T err %v", res, err)
	}
	if _, wrong := res.(domain.AuthWrongPassword); wrong {
		t.Fatalf("a stopped pool must not look like a wrong password")
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "alice", "correct-horse")

	if _, ok, err := f.auth.ChangePassword(ctx, user, "short"); err != nil || ok {
		t.Fatalf("expected policy rejection, got ok=%v err=%v", ok, err)
	}

	f.clock.Advance(time.Hour)
	updated, ok, err := f.auth.ChangePassword(ctx, user, "battery-staple")
	if err != nil || !ok {
		t.Fatalf("ChangePassword failed: ok=%v err=%v", ok, err)
	}
	if !updated.UpdatedAt().Equal(epoch.Add(time.Hour)) {
		t.Fatalf("updatedAt not refreshed: %v", updated.UpdatedAt())
	}

	if res, _ := f.auth.Authenticate(ctx, "alice", "correct-horse"); variantName(res) != "AuthWrongPassword" {
		t.Fatalf("old password must stop working, got %s", variantName(res))
	}
	if res, _ := f.auth.Authenticate(ctx, "alice", "battery-staple"); variantName(res) != "AuthSucceeded" {
		t.Fatalf("new password must work, got %s", variantName(res))
	}
}

func TestAuthService_ChangePassword_LeavesCredentialsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "alice", "correct-horse")

	handle, _, err := f.sessionIss.CreateSession(ctx, domain.PrincipalFor(user))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, ok, err := f.auth.ChangePassword(ctx, user, "battery-staple"); err != nil || !ok {
		t.Fatalf("ChangePassword failed: ok=%v err=%v", ok, err)
	}
	if _, err := f.sessionIss.ValidateSession(ctx, handle); err != nil {
		t.Fatalf("session must survive a bare password change: %v", err)
	}
}

func variantName(v any) string {
	switch v.(type) {
	case domain.AuthSucceeded:
		return "AuthSucceeded"
	case domain.AuthUserNotFound:
		return "AuthUserNotFound"
	case domain.AuthWrongPassword:
		return "AuthWrongPassword"
	case domain.AuthDisabled:
		return "AuthDisabled"
	case nil:
		return "nil"
	default:
		return "unknown"
	}
}
