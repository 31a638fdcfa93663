// Package session issues and verifies signed, time-bound session tokens.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
)

// DefaultTTL is the absolute validity window of a session token.
const DefaultTTL = 7 * 24 * time.Hour

// TokenType is reported alongside issued tokens.
const TokenType = "bearer"

// Claims embeds the principal id (as subject) and email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Principal is the identity carried by a verified token.
type Principal struct {
	UserID int64
	Email  string
}

// Issuer signs and verifies HS256 tokens with a secret fixed at startup.
type Issuer struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer constructs an Issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(signKey []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{signKey: signKey, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// TTL returns the token validity window.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a signed token for u expiring at issuance time + TTL.
func (i *Issuer) Issue(u *model.User) (model.Tokens, error) {
	if u == nil || u.ID == 0 {
		return model.Tokens{}, fmt.Errorf("%w: empty principal", errs.ErrValidation)
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: u.Email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, TokenType: TokenType, ExpiresAt: exp}, nil
}

// Parse verifies signature and expiry and returns the embedded principal.
// Every failure is reported as errs.ErrUnauthorized.
func (i *Issuer) Parse(token string) (Principal, error) {
	if token == "" {
		return Principal{}, errs.ErrUnauthorized
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.signKey, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return Principal{UserID: id, Email: claims.Email}, nil
}
