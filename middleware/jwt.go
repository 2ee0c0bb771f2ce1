package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ControllerClaims identifies a controller client allowed to steer the arena.
// The registered ID (jti) keys the token's session in the cache.
type ControllerClaims struct {
	Controller string `json:"controller"`
	jwt.RegisteredClaims
}

// GenerateToken signs a controller JWT and returns it with its jti.
func GenerateToken(controller, secret string, ttl time.Duration) (string, string, error) {
	if controller == "" {
		return "", "", errors.New("empty controller name")
	}
	now := time.Now()
	jti := uuid.NewString()
	claims := &ControllerClaims{
		Controller: controller,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   controller,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken validates a JWT string and returns the claims.
func ParseToken(tokenStr, secret string) (*ControllerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ControllerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ControllerClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
