package ports

import (
	"context"
	"time"

	"github.com/natours/tours-api/internal/core/domain"
)

// ListAccountsFilter carries the admin listing parameters.
type ListAccountsFilter struct {
	Role  domain.Role // optional
	Page  int         // 1-based
	Limit int         // capped at 100 by the service
}

// CredentialStore is what the auth core needs from the document store.
// Every lookup silently excludes inactive accounts. Lookups without the
// WithSecret suffix never populate Account.PasswordHash.
type CredentialStore interface {
	FindActiveByID(ctx context.Context, id string) (*domain.Account, error)
	FindActiveByIDWithSecret(ctx context.Context, id string) (*domain.Account, error)
	FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindActiveByEmailWithSecret(ctx context.Context, email string) (*domain.Account, error)

	// FindActiveByResetToken returns the account whose stored reset hash equals
	// tokenHash and whose reset expiry is after now.
	FindActiveByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.Account, error)

	// Create inserts a new account and returns it with its assigned ID.
	// A duplicate username or email yields domain.ErrAccountExists.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)

	// UpdateByID applies update to an active account and returns the result.
	UpdateByID(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error)

	// ConsumeResetToken applies update only if the token hash still matches and
	// has not expired, as one conditional write. It returns
	// domain.ErrResetTokenInvalid when no account matched.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, update domain.AccountUpdate) (*domain.Account, error)

	// ClearResetToken removes the pending reset of account id only while its
	// stored hash is still tokenHash. A reset that was replaced or consumed in
	// the meantime is left alone and is not an error.
	ClearResetToken(ctx context.Context, id, tokenHash string) error

	List(ctx context.Context, filter ListAccountsFilter) ([]*domain.Account, int64, error)
}
