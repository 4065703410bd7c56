package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authHandler(secret string, captured *string) http.Handler {
	return BearerAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestBearerAuthValidToken(t *testing.T) {
	var subject string
	h := authHandler("secret", &subject)

	token := signedToken(t, "secret", jwt.MapClaims{
		"sub": "erp-west",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "erp-west", subject)
}

func TestBearerAuthRejections(t *testing.T) {
	var subject string
	h := authHandler("secret", &subject)

	cases := map[string]string{
		"missing header":  "",
		"not bearer":      "Basic abc123",
		"garbage token":   "Bearer not-a-jwt",
		"wrong secret":    "Bearer " + signedToken(t, "other-secret", jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired token":   "Bearer " + signedToken(t, "secret", jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestBearerAuthDisabledWithEmptySecret(t *testing.T) {
	var subject string
	h := authHandler("", &subject)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, subject)
}
