package ports

import (
	"context"
	"time"
)

// PasswordHasher hashes and verifies credentials off the request path.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify returns false, nil on mismatch or a malformed hash; the error is
	// reserved for infrastructure failures.
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
	// VerifyDummy spends the same work as Verify without a real hash.
	VerifyDummy(ctx context.Context, plaintext string)
}

// SessionClaims is what a verified session token asserts.
type SessionClaims struct {
	AccountID string
	IssuedAt  time.Time
}

// TokenIssuer signs and verifies self-contained session tokens.
type TokenIssuer interface {
	Issue(accountID string, issuedAt time.Time) (string, error)
	Verify(token string) (SessionClaims, error)
	Lifetime() time.Duration
}

// ResetTokens generates single-use reset secrets and their lookup hashes.
type ResetTokens interface {
	Issue() (string, error)
	HashOf(plaintext string) string
	ExpiresAt(now time.Time) time.Time
	IsExpired(expiresAt, now time.Time) bool
}
