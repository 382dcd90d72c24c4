package social

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Well known issuer values.
var (
	GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}
	AppleIssuers  = []string{"https://appleid.apple.com"}
)

// idTokenClaims covers the fields Google and Apple put in ID tokens. Apple
// encodes email_verified as a string.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
}

func (c *idTokenClaims) emailVerified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// KeySource resolves signing keys for a request.
type KeySource interface {
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

// StaticKey serves a single key regardless of kid.
type StaticKey struct{ Key any }

func (s StaticKey) Keyfunc(context.Context) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) { return s.Key, nil }
}

// JWTVerifier validates an OpenID Connect ID token: RS256 signature, expiry,
// issuer and audience.
type JWTVerifier struct {
	Keys        KeySource
	Issuers     []string
	Audience    string
	DefaultName string
}

func (v *JWTVerifier) Verify(ctx context.Context, rawToken string) (*Claim, error) {
	claims := &idTokenClaims{}

	_, err := jwt.ParseWithClaims(rawToken, claims, v.Keys.Keyfunc(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("id token: %w: %w", common.ErrorUnauthorized, err)
	}
	if len(v.Issuers) > 0 && !slices.Contains(v.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("id token issuer %q: %w", claims.Issuer, common.ErrorUnauthorized)
	}
	if claims.Email != "" && claims.EmailVerified != nil && !claims.emailVerified() {
		return nil, fmt.Errorf("id token email not verified: %w", common.ErrorUnauthorized)
	}

	name := claims.Name
	if name == "" {
		name = v.DefaultName
	}
	return &Claim{Subject: claims.Subject, Email: claims.Email, Name: name}, nil
}
