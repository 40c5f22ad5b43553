package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify a session. The session id travels as the jti claim and is
// only meaningful while the session store still holds it.
type Claims struct {
	PrincipalID int64  `json:"pid"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// NewSessionID returns 256 bits of randomness, hex encoded.
func NewSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func GenerateToken(secret, sessionID string, principalID int64, role string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		PrincipalID: principalID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sessionID,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, token string) (*Claims, error) {
	return parse(secret, token, jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})))
}

// ParseTokenIgnoringExpiry checks only the signature, so an expired session
// can still be logged out.
func ParseTokenIgnoringExpiry(secret, token string) (*Claims, error) {
	return parse(secret, token, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	))
}

func parse(secret, token string, parser *jwt.Parser) (*Claims, error) {
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.PrincipalID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
