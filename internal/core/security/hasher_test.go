package security_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/security"
)

type blockingRunner struct{}

func (blockingRunner) Do(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return ctx.Err()
}

func newHasher(t *testing.T) *security.BcryptHasher {
	t.Helper()
	h, err := security.NewBcryptHasher(bcrypt.MinCost, nil, time.Second)
	require.NoError(t, err)
	return h
}

func TestBcryptHasher_Hash(t *testing.T) {
	h := newHasher(t)
	ctx := context.Background()

	t.Run("hash differs from plaintext", func(t *testing.T) {
		hash, err := h.Hash(ctx, "Secret123")
		require.NoError(t, err)
		assert.NotEqual(t, "Secret123", hash)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		h1, err := h.Hash(ctx, "samepassword")
		require.NoError(t, err)
		h2, err := h.Hash(ctx, "samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := h.Hash(ctx, "")
		assert.Error(t, err)
	})

	t.Run("password over 72 bytes is a validation error", func(t *testing.T) {
		_, err := h.Hash(ctx, strings.Repeat("a", 80))
		assert.ErrorIs(t, err, domain.ErrPasswordTooLong)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("multibyte password over 72 bytes", func(t *testing.T) {
		_, err := h.Hash(ctx, strings.Repeat("é", 40))
		assert.ErrorIs(t, err, domain.ErrPasswordTooLong)
	})

	t.Run("exactly 72 bytes is accepted", func(t *testing.T) {
		_, err := h.Hash(ctx, strings.Repeat("a", 72))
		assert.NoError(t, err)
	})
}

func TestBcryptHasher_Verify(t *testing.T) {
	h := newHasher(t)
	ctx := context.Background()

	passwords := []string{"Secret123", "pässwörd-ünïcode", "a much longer passphrase with spaces"}
	for _, p := range passwords {
		hash, err := h.Hash(ctx, p)
		require.NoError(t, err)

		ok, err := h.Verify(ctx, p, hash)
		require.NoError(t, err)
		assert.True(t, ok, "verify(%q, hash(%q))", p, p)

		for _, other := range passwords {
			if other == p {
				continue
			}
			ok, err := h.Verify(ctx, other, hash)
			require.NoError(t, err)
			assert.False(t, ok, "verify(%q, hash(%q))", other, p)
		}
	}
}

func TestBcryptHasher_VerifyMalformedHash(t *testing.T) {
	h := newHasher(t)

	ok, err := h.Verify(context.Background(), "password", "not-a-hash")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.Verify(context.Background(), "password", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_BudgetExceeded(t *testing.T) {
	h, err := security.NewBcryptHasher(bcrypt.MinCost, blockingRunner{}, 10*time.Millisecond)
	require.NoError(t, err)

	_, err = h.Hash(context.Background(), "Secret123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	ok, err := h.Verify(context.Background(), "Secret123", "$2a$04$abc")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNewBcryptHasher_InvalidCost(t *testing.T) {
	_, err := security.NewBcryptHasher(bcrypt.MaxCost+1, nil, time.Second)
	assert.Error(t, err)
}
