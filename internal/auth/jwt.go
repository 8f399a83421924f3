package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "shackcontrol"

// Scope limits what a remote operator may do.
type Scope string

const (
	ScopeMonitor Scope = "monitor"
	ScopeControl Scope = "control"
)

// ParseScope accepts "monitor" or "control".
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeMonitor:
		return ScopeMonitor, nil
	case ScopeControl:
		return ScopeControl, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Allows reports whether a token with scope s satisfies required.
// control implies monitor.
func (s Scope) Allows(required Scope) bool {
	if s == ScopeControl {
		return true
	}
	return s == required
}

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Operator string `json:"operator"`
	Scope    Scope  `json:"scope"`
	jwt.RegisteredClaims
}

type TokenHandler struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenHandler(secretKey string, ttl time.Duration) *TokenHandler {
	return &TokenHandler{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue signs a token for operator. A zero ttl issues a token without expiry.
func (h *TokenHandler) Issue(operator string, scope Scope) (string, *Claims, error) {
	if operator == "" {
		return "", nil, fmt.Errorf("operator name required")
	}
	now := h.now()
	claims := &Claims{
		Operator: operator,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  operator,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
	}
	if h.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(h.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate parses and verifies a token.
func (h *TokenHandler) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(h.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := ParseScope(string(claims.Scope)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
