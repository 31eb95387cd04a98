package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/identity"
)

// Claims carries the registered claims plus the signed-in identity.
type Claims struct {
	jwt.RegisteredClaims
	Identity string
}

// GenerateToken issues an HS256 session token for id, valid for
// validityDuration.
func GenerateToken(id identity.ID, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Identity: id.String(),
	})
	return token.SignedString(secretKey)
}

// IdentityFromToken validates tokenString and returns the identity it was
// issued for.
func IdentityFromToken(tokenString string, secretKey []byte) (identity.ID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", common.ErrInvalidToken
	}
	return identity.ID(claims.Identity), nil
}
