// Package auth mints and validates the HS256 JWTs handed to clients: short
// lived access tokens carrying subject and role, and refresh tokens that the
// server only uses as opaque lookup keys.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// Claims carries the registered claims plus the account role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

func sign(claims Claims, secretKey []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

func registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := timeNow()
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// GenerateAccessToken signs {sub, role, iat, exp, jti}.
func GenerateAccessToken(userID string, role string, secretKey []byte, ttl time.Duration) (string, error) {
	return sign(Claims{RegisteredClaims: registered(userID, ttl), Role: role}, secretKey)
}

// GenerateRefreshToken signs {sub, iat, exp, jti}. The random jti keeps two
// tokens minted in the same second distinct.
func GenerateRefreshToken(userID string, secretKey []byte, ttl time.Duration) (string, error) {
	return sign(Claims{RegisteredClaims: registered(userID, ttl)}, secretKey)
}

// ParseAccessToken validates signature and expiry and returns the claims.
// Errors are common.ErrInvalidSignature, common.ErrTokenExpired or
// common.ErrMalformedToken.
func ParseAccessToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(timeNow),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, common.ErrInvalidSignature
		default:
			return nil, common.ErrMalformedToken
		}
	}

	// Refresh tokens share the secret but carry no role.
	if !token.Valid || claims.Subject == "" || claims.Role == "" {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}
