// Package auth resolves bearer tokens into normalized player identities.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
)

var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("auth: token is required")
	// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("auth: token is invalid")
)

// claims is the token body; the subject carries the player identity.
type claims struct {
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens issued for this service.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier returns a verifier for the configured secret and issuer.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: cfg.Issuer, now: time.Now}, nil
}

// Verify parses the token and returns the normalized identity it names.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	var parsed claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := domain.NormalizeIdentity(parsed.Subject)
	if identity == "" {
		return "", fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	return identity, nil
}

// Sign issues a token for identity valid for ttl. Used by tooling and tests.
func (v *Verifier) Sign(identity string, ttl time.Duration) (string, error) {
	now := v.now()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   domain.NormalizeIdentity(identity),
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
