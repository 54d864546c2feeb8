package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"homelet/api/internal/models"
)

var (
	ErrMissingToken   = errors.New("bearer credential required")
	ErrMalformedToken = errors.New("authorization header format must be Bearer {token}")
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated identity behind a request or a realtime connection.
type Principal struct {
	ID   int64
	Role string
}

// IsElevated reports whether the principal holds the admin role.
func (p Principal) IsElevated() bool {
	return p.Role == models.RoleAdmin
}

// GenerateJWT creates a new JWT for a given user. Used by tests and ops tooling;
// the API has no issuance endpoint.
func GenerateJWT(userID int64, role string, secretKey string, ttl time.Duration) (string, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid JWT: missing user_id")
	}

	return claims, nil
}

// Authenticate validates tokenString and returns the principal it names.
func Authenticate(tokenString, secretKey string) (Principal, error) {
	if tokenString == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := ValidateJWT(tokenString, secretKey)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: claims.UserID, Role: claims.Role}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer {token}" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", ErrMalformedToken
	}
	return parts[1], nil
}
