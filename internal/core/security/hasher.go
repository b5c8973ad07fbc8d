// Package security holds the credential primitives of the auth core:
// password hashing, session tokens and password-reset tokens.
package security

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/metrics"
)

const (
	DefaultBcryptCost = 12
	defaultBudget     = 5 * time.Second
	dummyPassword     = "natours-timing-equalizer"

	// bcrypt only reads the first 72 bytes of a password.
	maxPasswordBytes = 72
)

// Runner executes CPU-bound work away from the request goroutines.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// BcryptHasher implements ports.PasswordHasher with bcrypt. Every bcrypt call
// goes through the Runner and is bounded by budget.
type BcryptHasher struct {
	cost   int
	runner Runner
	budget time.Duration
	dummy  []byte
}

// NewBcryptHasher builds a hasher. A nil runner runs bcrypt inline.
func NewBcryptHasher(cost int, runner Runner, budget time.Duration) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("HASH_CONFIG_INVALID").Errorf("bcrypt cost %d out of range", cost)
	}
	if budget <= 0 {
		budget = defaultBudget
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, oops.Code("HASH_FAILED").Wrap(err)
	}
	return &BcryptHasher{cost: cost, runner: runner, budget: budget, dummy: dummy}, nil
}

// Hash returns the bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", oops.Code("HASH_EMPTY_PASSWORD").Errorf("password cannot be empty")
	}
	if len(plaintext) > maxPasswordBytes {
		return "", domain.ErrPasswordTooLong
	}

	var (
		out     []byte
		hashErr error
	)
	start := time.Now()
	err := h.run(ctx, func() {
		out, hashErr = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	})
	metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", oops.Code("HASH_UNAVAILABLE").With("operation", "hash").Wrap(err)
	}
	if errors.Is(hashErr, bcrypt.ErrPasswordTooLong) {
		return "", domain.ErrPasswordTooLong
	}
	if hashErr != nil {
		return "", oops.Code("HASH_FAILED").Wrap(hashErr)
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a
// mismatch, not an error.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if plaintext == "" || hash == "" {
		return false, nil
	}

	var cmpErr error
	start := time.Now()
	err := h.run(ctx, func() {
		cmpErr = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	})
	metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	if err != nil {
		return false, oops.Code("HASH_UNAVAILABLE").With("operation", "verify").Wrap(err)
	}
	return cmpErr == nil, nil
}

// VerifyDummy performs one comparison against a fixed hash and discards the result.
func (h *BcryptHasher) VerifyDummy(ctx context.Context, plaintext string) {
	_ = h.run(ctx, func() {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
	})
}

func (h *BcryptHasher) run(ctx context.Context, fn func()) error {
	if h.runner == nil {
		fn()
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.budget)
	defer cancel()
	return h.runner.Do(ctx, fn)
}
