package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin          = "admin"
	RolePayrollManager = "payroll_manager"
	RoleViewer         = "viewer"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims identify the caller. Tokens are minted out of band, for example
// with payrollctl token, so there is no user table behind them.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserContext is what request handlers see of an authenticated caller.
type UserContext struct {
	Subject string
	Role    string
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePayrollManager, RoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether role may change payroll data.
func CanWrite(role string) bool {
	return role == RoleAdmin || role == RolePayrollManager
}

func GenerateToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if !ValidRole(role) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidToken, ErrUnknownRole, claims.Role)
	}
	return claims, nil
}
