package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer names this service in the tokens it mints, so tokens signed
// elsewhere with the same secret are still rejected.
const tokenIssuer = "nexuswars"

// RoleAdmin is the only role the admin surface accepts.
const RoleAdmin = "admin"

// ErrInvalidToken covers every verification failure ParseToken reports
// beyond what the jwt library returns itself.
var ErrInvalidToken = errors.New("middleware: invalid token")

// SessionClaims is the payload of an admin session token.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken mints an HS256 token carrying the role, valid for ttl.
func GenerateToken(role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies the signature, expiry and issuer, and returns the
// claims of a valid token.
func ParseToken(tokenStr, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{},
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
