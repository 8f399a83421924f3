package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Middleware guards the remote panel. A nil handler disables auth and
// every request is treated as having control scope.
type Middleware struct {
	tokens *TokenHandler
}

func NewMiddleware(tokens *TokenHandler) *Middleware {
	return &Middleware{tokens: tokens}
}

func (m *Middleware) Enabled() bool {
	return m != nil && m.tokens != nil
}

// Authenticate validates the Bearer token and stores its claims.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "missing authorization header", nil))
			return
		}

		// "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid authorization header format", nil))
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid or expired token", nil))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireScope rejects requests whose token lacks the required scope.
func (m *Middleware) RequireScope(required Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("FORBIDDEN", "no token claims found", nil))
			return
		}
		if !claims.Scope.Allows(required) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("FORBIDDEN", "insufficient scope",
					map[string]interface{}{"required": string(required)}))
			return
		}
		c.Next()
	}
}

// ValidateToken is used by the websocket handshake.
func (m *Middleware) ValidateToken(token string) (*Claims, error) {
	if !m.Enabled() {
		return &Claims{Operator: "local", Scope: ScopeControl}, nil
	}
	return m.tokens.Validate(token)
}

// ClaimsFrom returns the claims stored by Authenticate, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// Operator names the caller for log lines.
func Operator(c *gin.Context) string {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.Operator
	}
	return "anonymous"
}
