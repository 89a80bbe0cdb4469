package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"signupboard/internal/domain"
)

type gatewayClaims struct {
	jwt.RegisteredClaims
}

type jwtIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewJWTIssuer returns an issuer that signs gateway tokens with HS256.
func NewJWTIssuer(secret string, expiry time.Duration) domain.TokenIssuer {
	return &jwtIssuer{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for the gateway process named by subject.
func (i *jwtIssuer) Issue(subject string) (string, error) {
	now := time.Now()
	claims := gatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a TokenVerifier for tokens made by NewJWTIssuer.
func NewJWTVerifier(secret string) domain.TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(tokenString string) (string, error) {
	claims := &gatewayClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("parse token: %w", domain.ErrUnauthorized)
	}
	if !token.Valid || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}
