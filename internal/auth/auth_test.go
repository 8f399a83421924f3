package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndValidate(t *testing.T) {
	h := NewTokenHandler(testSecret, time.Hour)

	token, claims, err := h.Issue("DL1ABC", ScopeControl)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "shackcontrol", claims.Issuer)

	parsed, err := h.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "DL1ABC", parsed.Operator)
	assert.Equal(t, ScopeControl, parsed.Scope)
	assert.Equal(t, claims.ID, parsed.ID)
}

func TestValidateRejects(t *testing.T) {
	h := NewTokenHandler(testSecret, time.Hour)
	token, _, err := h.Issue("DL1ABC", ScopeMonitor)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenHandler("ffffffffffffffffffffffffffffffff", time.Hour)
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewTokenHandler(testSecret, time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIssueRequiresOperator(t *testing.T) {
	_, _, err := NewTokenHandler(testSecret, 0).Issue("", ScopeControl)
	assert.Error(t, err)
}

func TestScope(t *testing.T) {
	s, err := ParseScope(" Control ")
	require.NoError(t, err)
	assert.Equal(t, ScopeControl, s)

	_, err = ParseScope("admin")
	assert.Error(t, err)

	assert.True(t, ScopeControl.Allows(ScopeMonitor))
	assert.True(t, ScopeMonitor.Allows(ScopeMonitor))
	assert.False(t, ScopeMonitor.Allows(ScopeControl))
}

func newRouter(m *Middleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Authenticate())
	r.GET("/read", m.RequireScope(ScopeMonitor), func(c *gin.Context) {
		c.String(http.StatusOK, Operator(c))
	})
	r.POST("/write", m.RequireScope(ScopeControl), func(c *gin.Context) {
		c.String(http.StatusOK, Operator(c))
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	h := NewTokenHandler(testSecret, time.Hour)
	monitor, _, err := h.Issue("listener", ScopeMonitor)
	require.NoError(t, err)
	control, _, err := h.Issue("DL1ABC", ScopeControl)
	require.NoError(t, err)

	r := newRouter(NewMiddleware(h))

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"missing token", http.MethodGet, "/read", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/read", "xyz", http.StatusUnauthorized},
		{"monitor reads", http.MethodGet, "/read", monitor, http.StatusOK},
		{"monitor cannot write", http.MethodPost, "/write", monitor, http.StatusForbidden},
		{"control writes", http.MethodPost, "/write", control, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := do(r, http.MethodPost, "/write", control)
	assert.Equal(t, "DL1ABC", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.Header.Set("Authorization", "Token "+control)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareDisabled(t *testing.T) {
	m := NewMiddleware(nil)
	assert.False(t, m.Enabled())

	r := newRouter(m)
	w := do(r, http.MethodPost, "/write", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	claims, err := m.ValidateToken("")
	require.NoError(t, err)
	assert.Equal(t, ScopeControl, claims.Scope)
}
