package domain

import "time"

// Role is the access level carried by an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleTourGuide Role = "tour-guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTourGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// Account is the credential record owned by the CredentialStore.
//
// PasswordHash is only populated by the *WithSecret lookups and is never
// serialized. ResetTokenHash and ResetExpiresAt are set and cleared together.
type Account struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	PasswordChangedAt time.Time
	ResetTokenHash    string
	ResetExpiresAt    time.Time
	Active            bool
	CreatedAt         time.Time
}

// ChangedPasswordAfter reports whether the password was changed at or after
// issuedAt, which makes any session issued at issuedAt stale.
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt.IsZero() {
		return false
	}
	return !issuedAt.After(a.PasswordChangedAt)
}

// HasPendingReset reports whether a reset token is outstanding at now.
func (a *Account) HasPendingReset(now time.Time) bool {
	return a.ResetTokenHash != "" && a.ResetExpiresAt.After(now)
}

// PublicAccount is the projection returned to clients.
type PublicAccount struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Public strips every credential field from the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{Username: a.Username, Email: a.Email, Role: a.Role}
}

// ResetToken is the pending password-reset state written by forgot-password.
type ResetToken struct {
	Hash      string
	ExpiresAt time.Time
}

// AccountUpdate is a partial update. Nil fields are left untouched.
//
// SetReset and ClearReset are mutually exclusive; both reset fields are
// always written in the same update.
type AccountUpdate struct {
	Username          *string
	Email             *string
	PasswordHash      *string
	PasswordChangedAt *time.Time
	Active            *bool
	SetReset          *ResetToken
	ClearReset        bool
}

// IsEmpty reports whether the update would not change anything.
func (u AccountUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil &&
		u.PasswordChangedAt == nil && u.Active == nil && u.SetReset == nil && !u.ClearReset
}
