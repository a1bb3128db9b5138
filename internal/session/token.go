package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers any cookie value that does not carry a valid
// signature over a session id.
var ErrInvalidToken = errors.New("invalid session token")

// TokenCodec signs session ids into the cookie value. The token holds no
// session state beyond the id; expiry lives in the server-side record.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

func (c *TokenCodec) Encode(sessionID string, issuedAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature and returns the session id.
func (c *TokenCodec) Decode(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
