// Package auth issues and validates the compact HS256 tokens used as access
// and refresh credentials.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access from refresh tokens so one cannot be
// replayed as the other even when both secrets are equal.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrMissingSecret means the signing secret is not configured.
	ErrMissingSecret = fmt.Errorf("signing secret is not set: %w", common.ErrorConfiguration)
	// ErrInvalidFormat means the token is not three dot-separated base64url segments.
	ErrInvalidFormat = fmt.Errorf("malformed token: %w", common.ErrInvalidToken)
	// ErrBadSignature means the signature does not match the header and payload.
	ErrBadSignature = fmt.Errorf("bad token signature: %w", common.ErrInvalidToken)
	// ErrWrongType means the token is valid but of the other TokenType.
	ErrWrongType = fmt.Errorf("unexpected token type: %w", common.ErrInvalidToken)
	// ErrExpired means now is past exp.
	ErrExpired = common.ErrTokenExpired
)

// Claims carries the subject user id and a copy of the email at issuance time.
// The email may go stale if the user later changes it.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email,omitempty"`
	Type  TokenType `json:"typ,omitempty"`
}

// UserID returns the subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Sign stamps iat=now and exp=now+ttl on claims and returns the signed token.
// A random jti keeps two tokens for the same subject issued within one
// second distinct.
func Sign(claims Claims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = jti

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks structure, signature (constant-time HMAC comparison inside
// jwt) and expiry, in that order, and returns the claims.
func Verify(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrInvalidFormat
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrInvalidFormat
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrBadSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Signer binds a secret, lifetime and token type.
type Signer struct {
	secret string
	ttl    time.Duration
	typ    TokenType
}

// NewSigner creates a Signer. An empty secret is accepted here and reported
// as ErrMissingSecret on every Issue/Parse call.
func NewSigner(secret string, ttl time.Duration, typ TokenType) *Signer {
	return &Signer{secret: secret, ttl: ttl, typ: typ}
}

// TTL returns the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Configured returns ErrMissingSecret when the signer has no secret.
func (s *Signer) Configured() error {
	if s.secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// Issue signs a token for userID.
func (s *Signer) Issue(userID, email string) (string, error) {
	return Sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Email:            email,
		Type:             s.typ,
	}, s.secret, s.ttl)
}

// Parse verifies tokenString and checks its type.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims, err := Verify(tokenString, s.secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != s.typ {
		return nil, ErrWrongType
	}
	return claims, nil
}
