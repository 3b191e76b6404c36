package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newAuthHandler(apiKey string) http.Handler {
	m := NewAuthMiddleware(apiKey, zap.NewNop())
	return m.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAuthMiddleware_RequireAPIKey(t *testing.T) {
	t.Run("empty configured key disables enforcement", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newAuthHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing key is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newAuthHandler("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		newAuthHandler("secret").ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		newAuthHandler("secret").ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("X-API-Key header is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		newAuthHandler("secret").ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
