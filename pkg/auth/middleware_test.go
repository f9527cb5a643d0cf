package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret []byte, sub string, roles []string, expiry time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "agentgov-test",
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestMiddleware_ValidTokenAttachesPrincipal(t *testing.T) {
	secret := []byte("test-secret")
	validator := NewValidator(secret)
	middleware := NewMiddleware(validator)

	var captured Principal
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := FromContext(r.Context())
		require.NoError(t, err)
		captured = p
		w.WriteHeader(http.StatusOK)
	}))

	token := signTestToken(t, secret, "operator-1", []string{"admin"}, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator-1", captured.Subject)
	assert.True(t, captured.HasRole("admin"))
}

func TestMiddleware_MissingAuthorizationHeaderRejected(t *testing.T) {
	middleware := NewMiddleware(NewValidator([]byte("secret")))
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_NilValidatorFailsClosed(t *testing.T) {
	middleware := NewMiddleware(nil)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_ExpiredTokenRejected(t *testing.T) {
	secret := []byte("test-secret")
	middleware := NewMiddleware(NewValidator(secret))
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	token := signTestToken(t, secret, "operator-1", nil, time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_WrongSigningSecretRejected(t *testing.T) {
	middleware := NewMiddleware(NewValidator([]byte("real-secret")))
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	token := signTestToken(t, []byte("wrong-secret"), "operator-1", nil, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_PublicPathSkipsAuth(t *testing.T) {
	middleware := NewMiddleware(nil)
	ran := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, ran)
	assert.Equal(t, http.StatusOK, w.Code)
}
