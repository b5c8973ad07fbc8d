package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

const (
	ResetTokenBytes = 32 // 64 hex chars
	DefaultResetTTL = 10 * time.Minute
)

// ResetTokenManager mints password-reset secrets. Only HashOf(token) is ever
// persisted; the plaintext goes to the account's email and nowhere else.
type ResetTokenManager struct {
	ttl time.Duration
}

func NewResetTokenManager(ttl time.Duration) *ResetTokenManager {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokenManager{ttl: ttl}
}

// Issue returns a fresh hex-encoded random token.
func (m *ResetTokenManager) Issue() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashOf is the deterministic lookup key for a plaintext token.
func (m *ResetTokenManager) HashOf(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (m *ResetTokenManager) ExpiresAt(now time.Time) time.Time {
	return now.Add(m.ttl)
}

func (m *ResetTokenManager) IsExpired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}
