// Package auth issues and verifies the login tokens the backend hands out.
// It is the whole of the authentication collaborator the vault core
// consumes: given a request's bearer token, it yields a verified account
// identity or a typed failure.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ssh-box/sshbox/internal/common"
)

// Claims carries the account email alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// GenerateToken signs an HS256 token for email, valid for the given
// duration. Every token carries a random id, so two logins within the
// same second still produce distinct tokens.
func GenerateToken(email string, secretKey []byte, validity time.Duration) (string, error) {
	jti, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: email,
	})

	return token.SignedString(secretKey)
}

// EmailFromToken verifies a token and returns the account email it was
// issued for. Every verification failure, expiry included, comes back as
// common.ErrInvalidToken.
func EmailFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Email == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Email, nil
}
