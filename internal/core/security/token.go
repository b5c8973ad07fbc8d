package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/natours/tours-api/internal/core/ports"
)

// DefaultSessionLifetime matches a 90 day session cookie.
const DefaultSessionLifetime = 90 * 24 * time.Hour

// ErrInvalidToken is the only failure Verify reports, whatever the cause.
var ErrInvalidToken = errors.New("invalid session token")

// sessionClaims adds the millisecond issue time to the registered claims.
// Password changes are stored to the millisecond and iat only carries
// seconds, so staleness is decided on iat_ms.
type sessionClaims struct {
	jwt.RegisteredClaims
	IssuedAtMillis int64 `json:"iat_ms"`
}

// JWTIssuer signs HS256 session tokens carrying the account id as subject.
type JWTIssuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewJWTIssuer builds an issuer. The secret must not be empty.
func NewJWTIssuer(secret string, lifetime time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("jwt secret is required")
	}
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &JWTIssuer{secret: []byte(secret), lifetime: lifetime, now: time.Now}, nil
}

// Lifetime is how long an issued token stays valid.
func (i *JWTIssuer) Lifetime() time.Duration { return i.lifetime }

// Issue signs a token for accountID issued at issuedAt (millisecond resolution).
func (i *JWTIssuer) Issue(accountID string, issuedAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.lifetime)),
			ID:        ulid.Make().String(),
		},
		IssuedAtMillis: issuedAt.UnixMilli(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, structure and expiry.
func (i *JWTIssuer) Verify(token string) (ports.SessionClaims, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return ports.SessionClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.IssuedAtMillis <= 0 {
		return ports.SessionClaims{}, ErrInvalidToken
	}
	if claims.IssuedAtMillis/1000 != claims.IssuedAt.Unix() {
		return ports.SessionClaims{}, ErrInvalidToken
	}
	return ports.SessionClaims{
		AccountID: claims.Subject,
		IssuedAt:  time.UnixMilli(claims.IssuedAtMillis).UTC(),
	}, nil
}
