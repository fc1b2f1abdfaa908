package domain

// Outcome types below are closed sums: each interface has an unexported marker
// method so only the variants declared here satisfy it. Callers switch on the
// concrete type; the gochecksumtype linter enforces exhaustive switches on the
// types annotated with sumtype:decl.

// CreateUserResult is returned by the user factory.
//
//sumtype:decl
type CreateUserResult interface{ isCreateUserResult() }

// UserCreated carries a freshly constructed, not yet persisted user.
type UserCreated struct{ User User }

// UserInvalid names the first field that failed policy validation.
type UserInvalid struct {
	Field  string
	Reason string
}

func (UserCreated) isCreateUserResult() {}
func (UserInvalid) isCreateUserResult() {}

// InsertResult is returned by CredentialStore.Insert.
//
//sumtype:decl
type InsertResult interface{ isInsertResult() }

// Inserted means the user and its role links were committed.
type Inserted struct{}

// AlreadyExists means a uniqueness constraint rejected the insert.
type AlreadyExists struct{}

func (Inserted) isInsertResult()      {}
func (AlreadyExists) isInsertResult() {}

// AuthResult is returned by AuthService.Authenticate.
//
//sumtype:decl
type AuthResult interface{ isAuthResult() }

// AuthSucceeded carries the authenticated user.
type AuthSucceeded struct{ User User }

// AuthUserNotFound means no account has the username.
type AuthUserNotFound struct{}

// AuthWrongPassword means the account exists but the password did not match.
type AuthWrongPassword struct{}

// AuthDisabled means the password matched a disabled account.
type AuthDisabled struct{}

func (AuthSucceeded) isAuthResult()     {}
func (AuthUserNotFound) isAuthResult()  {}
func (AuthWrongPassword) isAuthResult() {}
func (AuthDisabled) isAuthResult()      {}

// SignupResult is returned by the signup operation.
//
//sumtype:decl
type SignupResult interface{ isSignupResult() }

// SignupCreated carries the persisted user.
type SignupCreated struct{ User User }

// SignupConflict hides which unique field collided.
type SignupConflict struct{}

// SignupInvalid reports a policy violation verbatim.
type SignupInvalid struct {
	Field  string
	Reason string
}

func (SignupCreated) isSignupResult()  {}
func (SignupConflict) isSignupResult() {}
func (SignupInvalid) isSignupResult()  {}

// LoginResult is returned by the login operation.
//
//sumtype:decl
type LoginResult interface{ isLoginResult() }

// LoginSucceeded carries the user and the credential minted for it.
type LoginSucceeded struct {
	User       User
	Credential Credential
}

// LoginRejected covers unknown user, wrong password and disabled account alike.
type LoginRejected struct{}

func (LoginSucceeded) isLoginResult() {}
func (LoginRejected) isLoginResult()  {}

// ChangePasswordResult is returned by the change-password operation.
//
//sumtype:decl
type ChangePasswordResult interface{ isChangePasswordResult() }

// PasswordChanged means the new hash is stored. The presented credential is no
// longer valid unless CredentialsRetained is set, which happens when the hash
// was stored but the issuer failed to end the old credentials.
type PasswordChanged struct {
	User                User
	CredentialsRetained bool
}

// OldPasswordRejected means re-authentication with the old password failed.
type OldPasswordRejected struct{}

// NewPasswordRejected means the new password failed policy validation.
type NewPasswordRejected struct{ Reason string }

func (PasswordChanged) isChangePasswordResult()     {}
func (OldPasswordRejected) isChangePasswordResult() {}
func (NewPasswordRejected) isChangePasswordResult() {}
