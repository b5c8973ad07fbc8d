package ports

import (
	"context"

	"github.com/natours/tours-api/internal/core/domain"
)

// SignupInput carries the fields accepted by signup.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// ChangePasswordInput carries the fields accepted by change-password.
type ChangePasswordInput struct {
	AccountID          string
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm string
}

// ResetPasswordInput carries the fields accepted by reset-password.
type ResetPasswordInput struct {
	Token              string
	NewPassword        string
	NewPasswordConfirm string
}

// UpdateProfileInput carries the self-service profile edits. The password
// fields are only present so the service can refuse them.
type UpdateProfileInput struct {
	AccountID       string
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// Session is an issued session token together with its owner.
type Session struct {
	Token   string
	Account *domain.Account
}

// ListAccountsResult is one page of the admin account listing.
type ListAccountsResult struct {
	Items      []*domain.Account
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// AccountService is the account lifecycle used by the HTTP layer.
type AccountService interface {
	Signup(ctx context.Context, in SignupInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) (*Session, error)
	// ForgotPassword mails a reset link built as resetURLBase + plaintext token.
	ForgotPassword(ctx context.Context, email, resetURLBase string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) (*Session, error)

	// ResolveSession runs the authentication checks for a presented token.
	ResolveSession(ctx context.Context, token string) (*domain.Account, error)

	UpdateProfile(ctx context.Context, in UpdateProfileInput) (*domain.Account, error)
	Deactivate(ctx context.Context, accountID string) error
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter ListAccountsFilter) (*ListAccountsResult, error)
}
