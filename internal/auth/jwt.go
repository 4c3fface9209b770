package auth

import (
	"sessiongate/internal/models"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "sessiongate"

// AppClaims is the signed credential a client presents. SessionToken binds the credential
// to one admitted session; revoking the session invalidates the credential.
type AppClaims struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

func GenerateJWT(user *models.User, sessionToken, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &AppClaims{
		UserID:       user.ID,
		Role:         user.Role,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func VerifyJWT(tokenString, secret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
